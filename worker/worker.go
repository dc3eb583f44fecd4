package worker

import (
	"fmt"
	"sync"
	"time"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"
	"MandelbrotExplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/BrugadaSyndrome/multirpc"
)

const (
	heartBeatInterval = 30 * time.Second
	rollCallInterval  = time.Minute
)

// Worker renders tasks handed out by a coordinator until there are none left.
type Worker struct {
	done           chan struct{}
	logger         bslogger.Logger
	mapper         mandelbrot.ColorMapper
	mutex          sync.Mutex
	myAddress      string
	parameters     mandelbrot.RenderParameters
	stopOnce       sync.Once
	tasksCompleted int
	threads        int

	// Server answers roll calls from the coordinator and Client talks to it
	ServerClient multirpc.TcpServerClient
}

func NewWorker(settings Settings) (*Worker, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}

	myAddress, err := misc.ResolveListenAddress(settings.ListenAddress)
	if err != nil {
		return nil, err
	}

	worker := &Worker{
		done:      make(chan struct{}),
		logger:    bslogger.NewLogger(fmt.Sprintf("Worker %s", myAddress), bslogger.Normal, nil),
		myAddress: myAddress,
		threads:   settings.Threads,
	}
	worker.ServerClient = multirpc.NewTcpServerClient(worker, myAddress, "WorkerServer", settings.CoordinatorAddress, "CoordinatorClient")

	// The roll call server has to be up before registering so the coordinator can reach it
	if err = worker.ServerClient.Server.Run(); err != nil {
		return nil, err
	}

	// Register with the coordinator
	if err = worker.ServerClient.Client.Connect(); err != nil {
		_ = worker.ServerClient.Server.Stop()
		return nil, err
	}
	var nothing misc.Nothing
	if err = worker.ServerClient.Client.Call("Coordinator.RegisterWorker", worker.myAddress, &nothing); err != nil {
		worker.shutdown()
		return nil, err
	}

	// Get Mandelbrot settings from the coordinator
	var mandelbrotSettings mandelbrot.Settings
	if err = worker.ServerClient.Client.Call("Coordinator.GetMandelbrotSettings", nothing, &mandelbrotSettings); err != nil {
		_ = worker.ServerClient.Client.Call("Coordinator.DeRegisterWorker", worker.myAddress, &nothing)
		worker.shutdown()
		return nil, err
	}
	misc.CheckError(mandelbrotSettings.Verify(), worker.logger, misc.Warning)
	worker.mapper = mandelbrotSettings.Mapper()
	worker.parameters = mandelbrotSettings.Parameters()

	go worker.tickers()
	go worker.processTasks()

	return worker, nil
}

// Addr is the address of the roll call server, which also identifies the worker to the coordinator.
func (w *Worker) Addr() string {
	return w.myAddress
}

// Wait blocks until the worker has deregistered and shut down.
func (w *Worker) Wait() {
	<-w.done
}

func (w *Worker) TasksCompleted() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.tasksCompleted
}

func (w *Worker) tickers() {
	rollCall := time.NewTicker(rollCallInterval)
	heartBeat := time.NewTicker(heartBeatInterval)
	defer rollCall.Stop()
	defer heartBeat.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-rollCall.C:
			var junk misc.Nothing
			var reply bool
			if err := w.ServerClient.Client.Call("Coordinator.RollCall", junk, &reply); err != nil {
				// Cannot communicate with the Coordinator so we should shut down
				w.logger.Warningf("Coordinator missed roll call: %s", err)
				w.shutdown()
				return
			}

		case <-heartBeat.C:
			w.logger.Infof("Tasks [Completed: %d]", w.TasksCompleted())
		}
	}
}

func (w *Worker) processTasks() {
	w.logger.Infof("Processing tasks on %d threads", w.threads)
	var startTime = time.Now()

	wg := sync.WaitGroup{}
	wg.Add(w.threads)
	for i := 0; i < w.threads; i++ {
		go func() {
			defer wg.Done()
			w.processLoop()
		}()
	}
	wg.Wait()

	w.logger.Infof("Processed %d tasks in %s", w.TasksCompleted(), time.Since(startTime))

	w.logger.Info("Shutting down")
	var nothing misc.Nothing
	misc.CheckError(w.ServerClient.Client.Call("Coordinator.DeRegisterWorker", w.myAddress, &nothing), w.logger, misc.Warning)
	w.shutdown()
}

func (w *Worker) processLoop() {
	var nothing misc.Nothing
	for {
		select {
		case <-w.done:
			return
		default:
		}

		var taskTodo task.Task
		err := w.ServerClient.Client.Call("Coordinator.GetTask", w.myAddress, &taskTodo)
		if task.IsAllHandedOut(err) {
			// This is an expected error. No more work to do
			return
		}
		if err != nil {
			w.logger.Errorf("Unable to get a task: %s", err)
			return
		}

		if err = mandelbrot.RenderTask(&taskTodo, w.parameters, w.mapper); err != nil {
			w.logger.Errorf("Unable to render %s: %s", taskTodo.String(), err)
			return
		}

		if err = w.ServerClient.Client.Call("Coordinator.ReturnTask", taskTodo, &nothing); err != nil {
			w.logger.Errorf("Unable to return a task: %s", err)
			return
		}

		w.mutex.Lock()
		w.tasksCompleted++
		w.mutex.Unlock()
	}
}

func (w *Worker) shutdown() {
	w.stopOnce.Do(func() {
		misc.CheckError(w.ServerClient.Client.Disconnect(), w.logger, misc.Warning)
		misc.CheckError(w.ServerClient.Server.Stop(), w.logger, misc.Warning)
		w.ServerClient.Server.Wait()
		close(w.done)
	})
}

func (w *Worker) RollCall(request misc.Nothing, reply *bool) error {
	*reply = true
	return nil
}
