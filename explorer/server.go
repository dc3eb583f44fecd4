package explorer

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"image/png"
	"math"
	"net"
	"net/http"
	"time"

	"MandelbrotExplorer/mandelbrot"
	"MandelbrotExplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

//go:embed static/index.html
var indexPage []byte

// Message is a control event sent by the page.
//
//	down, move: pointer position in canvas pixels (X, Y)
//	up, leave: end of a drag
//	iterations: max iterations slider (Value)
//	zoom: scale slider (Value)
//	wheel: zoom at the pointer (X, Y) by Steps scale steps
//	reset: default view
type Message struct {
	Type  string  `json:"type"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Value float64 `json:"value,omitempty"`
	Steps int     `json:"steps,omitempty"`
}

// StateMessage precedes every binary PNG frame and describes it.
type StateMessage struct {
	Type string `json:"type"`
	State
}

type frameResult struct {
	buffer *mandelbrot.RasterBuffer
	state  State
	err    error
}

// Server serves the explorer page and a websocket per open page. Each connection has its own Session.
type Server struct {
	cancel         context.CancelFunc
	ctx            context.Context
	listener       net.Listener
	logger         bslogger.Logger
	originPatterns []string
	renderer       *mandelbrot.Renderer
	server         *http.Server
	settings       mandelbrot.Settings

	Address string
}

func NewServer(settings mandelbrot.Settings, address string, originPatterns []string) *Server {
	verified := settings
	_ = verified.Verify()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cancel:         cancel,
		ctx:            ctx,
		logger:         bslogger.NewLogger("ExplorerServer", bslogger.Normal, nil),
		originPatterns: originPatterns,
		renderer:       mandelbrot.NewRenderer(0, task.Grid, verified.Mapper()),
		settings:       verified,
		Address:        address,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.ctx
		},
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// Run starts listening and serves in the background.
func (s *Server) Run() error {
	var err error
	s.listener, err = net.Listen("tcp", s.Address)
	if err != nil {
		s.logger.Errorf("Listening at address %s", s.Address)
		return err
	}

	go func() {
		if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Serving at address %s: %s", s.Addr(), err)
		}
	}()

	s.logger.Infof("Listening on http://%s", s.Addr())
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return s.Address
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and ends the open websocket sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warningf("Accepting websocket from %s: %s", r.RemoteAddr, err)
		return
	}
	defer c.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session := NewSession(s.settings, s.renderer)
	s.logger.Infof("Session opened for %s", r.RemoteAddr)

	go func() {
		defer cancel()
		s.readMessages(ctx, c, session)
	}()

	err = s.renderLoop(ctx, c, session)
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		s.logger.Warningf("Session for %s ended: %s", r.RemoteAddr, err)
	}
	s.logger.Infof("Session closed for %s", r.RemoteAddr)
	_ = c.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) readMessages(ctx context.Context, c *websocket.Conn, session *Session) {
	for {
		var m Message
		if err := wsjson.Read(ctx, c, &m); err != nil {
			return
		}
		if err := Apply(session, m); err != nil {
			s.logger.Warningf("Message %q: %s", m.Type, err)
		}
	}
}

// Apply performs the session operation a message asks for.
func Apply(session *Session, m Message) error {
	switch m.Type {
	case "down":
		session.PointerDown(m.X, m.Y)
	case "move":
		return session.PointerMove(m.X, m.Y)
	case "up", "leave":
		session.PointerUp()
	case "iterations":
		session.SetIterations(uint32(min(max(m.Value, 0), math.MaxUint32)))
	case "zoom":
		session.SetScale(m.Value)
	case "wheel":
		return session.ZoomAt(m.X, m.Y, m.Steps)
	case "reset":
		session.Reset()
	default:
		return errors.New("unknown message type")
	}
	return nil
}

// renderLoop sends a frame for the initial state and again after every change. A change that arrives
// while a frame is rendering abandons that render and starts over from the latest state.
func (s *Server) renderLoop(ctx context.Context, c *websocket.Conn, session *Session) error {
	for {
		renderCtx, cancelRender := context.WithCancel(ctx)
		results := make(chan frameResult, 1)
		go func() {
			buffer, state, err := session.Frame(renderCtx)
			results <- frameResult{buffer: buffer, state: state, err: err}
		}()

		select {
		case <-ctx.Done():
			cancelRender()
			<-results
			return ctx.Err()

		case <-session.Changes():
			// Superseded
			cancelRender()
			<-results
			continue

		case result := <-results:
			cancelRender()
			if result.err != nil {
				if errors.Is(result.err, context.Canceled) {
					return ctx.Err()
				}
				return result.err
			}
			if err := writeFrame(ctx, c, result); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-session.Changes():
		}
	}
}

func writeFrame(ctx context.Context, c *websocket.Conn, result frameResult) error {
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, result.buffer); err != nil {
		return err
	}
	if err := wsjson.Write(ctx, c, StateMessage{Type: "state", State: result.state}); err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageBinary, encoded.Bytes())
}
