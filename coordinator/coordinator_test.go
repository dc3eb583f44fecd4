package coordinator

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/misc"
	"MandelbrotExplorer/task"
	"MandelbrotExplorer/worker"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/BrugadaSyndrome/multirpc"
)

func waitFor(t *testing.T, what string, wait func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestDistributedRenderMatchesLocalRender(t *testing.T) {
	settings := Settings{
		ImageFormat:    FormatPNG,
		Mandelbrot:     mandelbrot.Settings{Width: 96, Height: 80, MaxIterations: 60},
		RunName:        "loopback",
		SavePath:       t.TempDir(),
		ServerAddress:  "127.0.0.1:0",
		TaskGeneration: "grid",
	}
	c, err := NewCoordinator(settings)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	w, err := worker.NewWorker(worker.Settings{CoordinatorAddress: c.Addr(), ListenAddress: "127.0.0.1:0", Threads: 2})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	waitFor(t, "the coordinator", c.Wait)
	waitFor(t, "the worker", w.Wait)

	files := c.SavedFiles()
	if len(files) != 1 {
		t.Fatalf("saved %v, want one frame", files)
	}
	if want := filepath.Join(settings.SavePath, "loopback", "1.png"); files[0] != want {
		t.Errorf("saved to %s, want %s", files[0], want)
	}
	if _, err = os.Stat(filepath.Join(settings.SavePath, "loopback", "settings.json")); err != nil {
		t.Errorf("settings backup: %v", err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want, err := mandelbrot.Render(mandelbrot.Reset(), mandelbrot.RenderParameters{MaxIterations: 60, Width: 96, Height: 80})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds() != want.Bounds() {
		t.Fatalf("image bounds %s, want %s", img.Bounds(), want.Bounds())
	}
	for y := 0; y < want.Height; y++ {
		for x := 0; x < want.Width; x++ {
			gr, gg, gb, ga := img.At(x, y).RGBA()
			wr, wg, wb, wa := want.At(x, y).RGBA()
			if gr != wr || gg != wg || gb != wb || ga != wa {
				t.Fatalf("pixel (%d, %d) differs", x, y)
			}
		}
	}
	if w.TasksCompleted() != 4 {
		t.Errorf("worker completed %d tasks, want 4", w.TasksCompleted())
	}
}

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Settings{
		Mandelbrot:    mandelbrot.Settings{Width: 8, Height: 2, MaxIterations: 10},
		RunName:       "rpc",
		SavePath:      t.TempDir(),
		ServerAddress: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func TestTasksOfADepartedWorkerAreRequeued(t *testing.T) {
	c := newTestCoordinator(t)
	var nothing misc.Nothing
	// Nothing listens here, so roll call would fail, but the coordinator only records the address
	if err := c.RegisterWorker("127.0.0.1:1", &nothing); err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}

	var first task.Task
	if err := c.GetTask("127.0.0.1:1", &first); err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if first.WorkerAddress != "127.0.0.1:1" {
		t.Errorf("task handed out to %q", first.WorkerAddress)
	}
	if err := c.DeRegisterWorker("127.0.0.1:1", &nothing); err != nil {
		t.Fatalf("DeRegisterWorker: %v", err)
	}
	if err := c.GetTask("127.0.0.1:1", &first); err == nil {
		t.Error("a departed worker was given a task")
	}

	if err := c.RegisterWorker("127.0.0.1:2", &nothing); err != nil {
		t.Fatalf("RegisterWorker: %v", err)
	}
	var again task.Task
	if err := c.GetTask("127.0.0.1:2", &again); err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if again.ID != first.ID || len(again.Results) != 0 {
		t.Errorf("got %s, want task %d requeued without results", again.String(), first.ID)
	}

	// Finish the run so the coordinator shuts down
	params := mandelbrot.RenderParameters{MaxIterations: 10, Width: 8, Height: 2}
	for tk := again; ; {
		if err := mandelbrot.RenderTask(&tk, params, nil); err != nil {
			t.Fatalf("RenderTask: %v", err)
		}
		if err := c.ReturnTask(tk, &nothing); err != nil {
			t.Fatalf("ReturnTask: %v", err)
		}
		tk = task.Task{}
		err := c.GetTask("127.0.0.1:2", &tk)
		if task.IsAllHandedOut(err) {
			break
		}
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
	}
	if err := c.DeRegisterWorker("127.0.0.1:2", &nothing); err != nil {
		t.Fatalf("DeRegisterWorker: %v", err)
	}
	waitFor(t, "the coordinator", c.Wait)

	if err := c.RegisterWorker("127.0.0.1:3", &nothing); !task.IsAllHandedOut(err) {
		t.Errorf("late RegisterWorker = %v, want %v", err, task.ErrAllHandedOut)
	}
}

func TestTaskTakenWhileWorkerLeavesIsRequeued(t *testing.T) {
	const address = "127.0.0.1:1"
	c := &Coordinator{
		clients:        make(map[string]*multirpc.TcpClient),
		logger:         bslogger.NewLogger("CoordinatorTest", bslogger.Normal, nil),
		tasksHandedOut: make(map[string]map[uint]task.Task),
		tasksTodo:      make(chan task.Task),
	}
	client := multirpc.NewTcpClient(address, address)
	c.clients[address] = &client
	c.tasksHandedOut[address] = make(map[uint]task.Task)
	c.workerWait.Add(1)

	result := make(chan error, 1)
	go func() {
		var tk task.Task
		result <- c.GetTask(address, &tk)
	}()
	// Give GetTask time to block on the empty channel
	time.Sleep(100 * time.Millisecond)

	var nothing misc.Nothing
	if err := c.DeRegisterWorker(address, &nothing); err != nil {
		t.Fatalf("DeRegisterWorker: %v", err)
	}
	pending := task.NewTask(9, 1, task.Coordinate{Scale: 200}, task.Split(4, 4, task.Image)[0])
	select {
	case c.tasksTodo <- pending:
	case <-time.After(5 * time.Second):
		t.Fatal("GetTask stopped waiting for a task")
	}
	if err := <-result; err == nil {
		t.Fatal("a departed worker was given a task")
	}

	c.mutex.Lock()
	requeued := len(c.requeued)
	c.mutex.Unlock()
	if requeued != 1 {
		t.Fatalf("%d tasks requeued, want 1", requeued)
	}

	const next = "127.0.0.1:2"
	nextClient := multirpc.NewTcpClient(next, next)
	c.clients[next] = &nextClient
	c.tasksHandedOut[next] = make(map[uint]task.Task)
	var got task.Task
	if err := c.GetTask(next, &got); err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.ID != pending.ID || got.WorkerAddress != next {
		t.Errorf("got %s for %q, want task %d", got.String(), got.WorkerAddress, pending.ID)
	}
}

func TestReturnTaskRejectsIncompleteTasks(t *testing.T) {
	c := newTestCoordinator(t)
	var nothing misc.Nothing
	tk := task.NewTask(0, 1, task.Coordinate{Scale: 200}, task.Split(8, 2, task.Row)[0])
	if err := c.ReturnTask(tk, &nothing); err == nil {
		t.Error("ReturnTask accepted a task without results")
	}
}

func TestGetMandelbrotSettings(t *testing.T) {
	c := newTestCoordinator(t)
	var got mandelbrot.Settings
	if err := c.GetMandelbrotSettings(false, &got); err != nil {
		t.Fatalf("GetMandelbrotSettings: %v", err)
	}
	if got.Parameters() != (mandelbrot.RenderParameters{MaxIterations: 10, Width: 8, Height: 2}) {
		t.Errorf("parameters = %s", got.Parameters())
	}
}

func TestSettingsVerify(t *testing.T) {
	s := Settings{ImageFormat: "JPG", TaskGeneration: "nonsense", Mandelbrot: mandelbrot.Settings{Scale: 300}}
	if err := s.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.ImageFormat != FormatJPEG || s.extension() != "jpg" {
		t.Errorf("ImageFormat = %q", s.ImageFormat)
	}
	if s.Generation() != task.Row {
		t.Errorf("Generation() = %s, want Row", s.Generation())
	}
	if s.RunName == "" || s.SavePath == "" || s.ServerAddress == "" {
		t.Errorf("defaults missing: %s", s.String())
	}
	if len(s.Transitions) != 1 || s.FrameCount() != 1 {
		t.Fatalf("transitions = %v", s.Transitions)
	}
	if got := s.Transitions[0].Frames()[0]; got != s.Mandelbrot.Viewport() {
		t.Errorf("default frame = %s, want %s", got, s.Mandelbrot.Viewport())
	}
}
