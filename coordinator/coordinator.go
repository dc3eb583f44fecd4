package coordinator

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
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

type frame struct {
	buffer     *mandelbrot.RasterBuffer
	pixelsLeft int
}

// Coordinator splits every frame of the configured transitions into tasks, hands them out to workers
// over rpc and assembles the returned pixels into image files.
type Coordinator struct {
	clients            map[string]*multirpc.TcpClient
	closing            bool
	done               chan struct{}
	frameCount         uint
	framesCompleted    uint
	frames             map[uint]*frame
	ingested           map[uint]bool
	logger             bslogger.Logger
	mutex              sync.Mutex
	requeued           []task.Task
	runPath            string
	savedFiles         []string
	settings           Settings
	stopTickers        chan struct{}
	taskCount          uint
	taskGeneratedCount uint
	taskIngestedCount  uint
	tasksDone          chan task.Task
	tasksHandedOut     map[string]map[uint]task.Task // keep track of all tasks workers have
	tasksTodo          chan task.Task
	workerWait         sync.WaitGroup

	Server multirpc.TcpServer
}

func NewCoordinator(settings Settings) (*Coordinator, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}
	address, err := misc.ResolveListenAddress(settings.ServerAddress)
	if err != nil {
		return nil, err
	}
	settings.ServerAddress = address

	coordinator := &Coordinator{
		clients:        make(map[string]*multirpc.TcpClient),
		done:           make(chan struct{}),
		frameCount:     settings.FrameCount(),
		frames:         make(map[uint]*frame),
		ingested:       make(map[uint]bool),
		logger:         bslogger.NewLogger("Coordinator", bslogger.Normal, nil),
		runPath:        filepath.Join(settings.SavePath, settings.RunName),
		settings:       settings,
		stopTickers:    make(chan struct{}),
		tasksDone:      make(chan task.Task, 1000),
		tasksHandedOut: make(map[string]map[uint]task.Task),
		tasksTodo:      make(chan task.Task, 1000),
	}

	// Determine the number of tasks that will be generated so the coordinator knows when to shut down
	tasksPerFrame := len(task.Split(int(settings.Mandelbrot.Width), int(settings.Mandelbrot.Height), settings.Generation()))
	coordinator.taskCount = uint(tasksPerFrame) * coordinator.frameCount

	// Create directory to store files for this run
	if err := misc.EnsureDir(coordinator.runPath); err != nil {
		return nil, err
	}

	// Copy the settings to the directory so the run can be duplicated in the future
	settingsBytes, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err = misc.WriteFile(filepath.Join(coordinator.runPath, "settings.json"), settingsBytes); err != nil {
		return nil, fmt.Errorf("unable to make a backup copy of the settings: %w", err)
	}

	// Create a log file to record the run
	logFile, err := os.Create(filepath.Join(coordinator.runPath, "coordinator.log"))
	misc.CheckError(err, coordinator.logger, misc.Warning)
	if err == nil {
		coordinator.logger = bslogger.NewLogger("Coordinator", bslogger.Normal, logFile)
	}

	// Start up the rpc tcp server to allow workers to communicate with the coordinator
	coordinator.Server = multirpc.NewTcpServer(coordinator, settings.ServerAddress, "CoordinatorServer")
	if err = coordinator.Server.Run(); err != nil {
		return nil, err
	}

	coordinator.logger.Infof("Rendering %d frames as %d tasks", coordinator.frameCount, coordinator.taskCount)
	go coordinator.tickers()
	go coordinator.generateTasks()
	go coordinator.ingestTasks()

	return coordinator, nil
}

// Addr is the address workers should register with.
func (c *Coordinator) Addr() string {
	return c.settings.ServerAddress
}

// Wait blocks until every frame has been saved and all workers have left.
func (c *Coordinator) Wait() {
	<-c.done
}

// SavedFiles lists the frames written so far, in the order they completed.
func (c *Coordinator) SavedFiles() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]string(nil), c.savedFiles...)
}

func (c *Coordinator) tickers() {
	rollCall := time.NewTicker(rollCallInterval)
	heartBeat := time.NewTicker(heartBeatInterval)
	defer rollCall.Stop()
	defer heartBeat.Stop()

	for {
		select {
		case <-c.stopTickers:
			return

		case <-rollCall.C:
			c.mutex.Lock()
			clients := make([]*multirpc.TcpClient, 0, len(c.clients))
			for _, v := range c.clients {
				clients = append(clients, v)
			}
			c.mutex.Unlock()

			var junk misc.Nothing
			for _, v := range clients {
				var reply bool
				if err := v.Call("Worker.RollCall", junk, &reply); err != nil {
					// Cannot communicate with the worker so remove it from the pool
					c.logger.Warningf("Worker %s missed roll call: %s", v.Name(), err)
					var nothing misc.Nothing
					misc.CheckError(c.DeRegisterWorker(v.Name(), &nothing), c.logger, misc.Warning)
				}
			}

		case <-heartBeat.C:
			c.mutex.Lock()
			c.logger.Infof("Tasks [Generated: %d] [Ingested: %d] | Frames [Completed: %d] [WIP: %d] [Todo: %d]", c.taskGeneratedCount, c.taskIngestedCount, c.framesCompleted, len(c.frames), c.frameCount-c.framesCompleted)
			c.mutex.Unlock()
		}
	}
}

func (c *Coordinator) generateTasks() {
	c.logger.Info("Generating tasks")

	var frameNumber uint = 1
	var startTime = time.Now()
	width, height := int(c.settings.Mandelbrot.Width), int(c.settings.Mandelbrot.Height)

	for _, transition := range c.settings.Transitions {
		for _, view := range transition.Frames() {
			c.mutex.Lock()
			firstID := c.taskGeneratedCount
			c.mutex.Unlock()

			tasks := task.Generate(firstID, frameNumber, mandelbrot.CoordinateOf(view), width, height, c.settings.Generation())
			for _, t := range tasks {
				c.tasksTodo <- t
			}

			c.mutex.Lock()
			c.taskGeneratedCount += uint(len(tasks))
			c.mutex.Unlock()
			frameNumber++
		}
	}

	close(c.tasksTodo)
	c.logger.Infof("Done generating %d tasks in %s", c.taskCount, time.Since(startTime))
}

func (c *Coordinator) ingestTasks() {
	c.logger.Info("Ingesting tasks")
	var startTime = time.Now()

	for c.taskIngestedCount < c.taskCount {
		taskReceived := <-c.tasksDone

		c.mutex.Lock()
		delete(c.tasksHandedOut[taskReceived.WorkerAddress], taskReceived.ID)
		duplicate := c.ingested[taskReceived.ID]
		c.ingested[taskReceived.ID] = true
		c.mutex.Unlock()
		if duplicate {
			// A requeued task was finished twice
			continue
		}

		misc.CheckError(c.ingest(&taskReceived), c.logger, misc.Error)
		c.mutex.Lock()
		c.taskIngestedCount++
		c.mutex.Unlock()
	}

	c.logger.Infof("Done ingesting %d tasks in %s", c.taskIngestedCount, time.Since(startTime))
	if c.settings.GenerateMovie {
		misc.CheckError(c.generateMovie(), c.logger, misc.Warning)
	}

	// No worker may join once the wait below has started
	c.mutex.Lock()
	c.closing = true
	c.logger.Infof("Waiting for %d workers to disconnect", len(c.clients))
	c.mutex.Unlock()
	c.workerWait.Wait()

	close(c.stopTickers)
	misc.CheckError(c.Server.Stop(), c.logger, misc.Warning)
	c.Server.Wait()
	close(c.done)
}

func (c *Coordinator) ingest(t *task.Task) error {
	c.mutex.Lock()
	f, ok := c.frames[t.FrameNumber]
	if !ok {
		// First pixels of this frame
		buffer := mandelbrot.NewRasterBuffer(int(c.settings.Mandelbrot.Width), int(c.settings.Mandelbrot.Height))
		f = &frame{buffer: buffer, pixelsLeft: buffer.Width * buffer.Height}
		c.frames[t.FrameNumber] = f
	}
	c.mutex.Unlock()

	if err := f.buffer.ApplyTask(t); err != nil {
		return err
	}
	f.pixelsLeft -= t.PixelCount()
	if f.pixelsLeft > 0 {
		return nil
	}

	// All pixels have been recorded so save the image
	path, err := c.saveFrame(t.FrameNumber, f.buffer)

	// Remove the frame to conserve memory
	c.mutex.Lock()
	delete(c.frames, t.FrameNumber)
	c.framesCompleted++
	if err == nil {
		c.savedFiles = append(c.savedFiles, path)
	}
	c.mutex.Unlock()
	return err
}

func (c *Coordinator) saveFrame(frameNumber uint, buffer *mandelbrot.RasterBuffer) (string, error) {
	path := filepath.Join(c.runPath, fmt.Sprintf("%d.%s", frameNumber, c.settings.extension()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create image: %w", err)
	}
	defer f.Close()

	if c.settings.ImageFormat == FormatJPEG {
		err = jpeg.Encode(f, buffer, &jpeg.Options{Quality: 95})
	} else {
		err = png.Encode(f, buffer)
	}
	if err != nil {
		return "", fmt.Errorf("unable to save image: %w", err)
	}
	c.logger.Infof("Saved image to %s", path)
	return path, nil
}

func (c *Coordinator) generateMovie() error {
	pattern := filepath.Join(c.runPath, "%d."+c.settings.extension())
	output := filepath.Join(c.runPath, c.settings.RunName+".mp4")
	cmd := exec.Command("ffmpeg", "-y", "-framerate", "30", "-i", pattern, "-pix_fmt", "yuv420p", output)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, out)
	}
	c.logger.Infof("Saved movie to %s", output)
	return nil
}

func (c *Coordinator) RegisterWorker(workerServerAddress string, reply *misc.Nothing) error {
	// Create a client to communicate with this worker
	client := multirpc.NewTcpClient(workerServerAddress, workerServerAddress)
	misc.CheckError(client.Connect(), c.logger, misc.Warning)

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closing {
		_ = client.Disconnect()
		return task.ErrAllHandedOut
	}
	if _, ok := c.clients[workerServerAddress]; ok {
		_ = client.Disconnect()
		return fmt.Errorf("worker %s is already registered", workerServerAddress)
	}
	c.clients[workerServerAddress] = &client

	// Track all tasks this worker checks out
	c.tasksHandedOut[workerServerAddress] = make(map[uint]task.Task)
	c.workerWait.Add(1)

	c.logger.Infof("Worker joined: %s", workerServerAddress)
	return nil
}

func (c *Coordinator) DeRegisterWorker(workerServerAddress string, reply *misc.Nothing) error {
	c.mutex.Lock()
	client, ok := c.clients[workerServerAddress]
	if !ok {
		c.mutex.Unlock()
		return fmt.Errorf("worker %s is not registered", workerServerAddress)
	}

	// Put tasks this worker has not returned yet back into the pool
	for _, v := range c.tasksHandedOut[workerServerAddress] {
		v.Reset()
		c.requeued = append(c.requeued, v)
	}

	// Remove stored values associated with this worker
	delete(c.tasksHandedOut, workerServerAddress)
	delete(c.clients, workerServerAddress)
	c.mutex.Unlock()

	misc.CheckError(client.Disconnect(), c.logger, misc.Warning)
	c.logger.Infof("Worker left: %s", workerServerAddress)
	c.workerWait.Done()

	return nil
}

func (c *Coordinator) RollCall(nothing misc.Nothing, present *bool) error {
	*present = true
	return nil
}

func (c *Coordinator) GetTask(workerAddress string, reply *task.Task) error {
	c.mutex.Lock()
	if _, ok := c.tasksHandedOut[workerAddress]; !ok {
		c.mutex.Unlock()
		return fmt.Errorf("worker %s is not registered", workerAddress)
	}
	todo, requeued := c.popRequeued()
	c.mutex.Unlock()

	if !requeued {
		var more bool
		todo, more = <-c.tasksTodo
		if !more {
			c.mutex.Lock()
			todo, requeued = c.popRequeued()
			c.mutex.Unlock()
			if !requeued {
				return task.ErrAllHandedOut
			}
		}
	}

	// The worker may have been deregistered while this call waited for a task
	c.mutex.Lock()
	defer c.mutex.Unlock()
	handedOut, ok := c.tasksHandedOut[workerAddress]
	if !ok {
		todo.Reset()
		c.requeued = append(c.requeued, todo)
		return fmt.Errorf("worker %s left while waiting for a task", workerAddress)
	}
	todo.WorkerAddress = workerAddress
	handedOut[todo.ID] = todo

	*reply = todo
	return nil
}

// popRequeued must be called with the mutex held.
func (c *Coordinator) popRequeued() (task.Task, bool) {
	if len(c.requeued) == 0 {
		return task.Task{}, false
	}
	todo := c.requeued[len(c.requeued)-1]
	c.requeued = c.requeued[:len(c.requeued)-1]
	return todo, true
}

func (c *Coordinator) ReturnTask(done task.Task, nothing *misc.Nothing) error {
	if !done.Complete() {
		return fmt.Errorf("task %d returned with %d of %d pixels", done.ID, len(done.Results), done.PixelCount())
	}
	c.tasksDone <- done
	return nil
}

func (c *Coordinator) GetMandelbrotSettings(nothing misc.Nothing, settings *mandelbrot.Settings) error {
	*settings = c.settings.Mandelbrot
	return nil
}
