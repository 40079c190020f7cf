package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/haivivi/cookguide/pkg/cli"
	"github.com/haivivi/cookguide/pkg/controller"
	"github.com/haivivi/cookguide/pkg/dialogue"
)

var (
	flagChatSession   string
	flagChatPolicy    string
	flagChatKnowledge string
	flagChatWidth     int
	flagChatPlain     bool
)

const chatHelp = "/event <name> [text]  /image <path>  /tick  /state  /reset  /disconnect  /connect  /quit"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a cooking session on the terminal",
	Long: `Run a cooking session on the terminal.

Every line is an utterance, classified against the events legal in the
current state. Lines starting with / are commands:

  /event <name> [text]  submit an event directly (e.g. /event repeat)
  /image <path>         set the camera frame used by the scene analysis
  /tick                 run a scene analysis now
  /state                show the state, legal events and memory
  /reset                clear memory and return to comparing
  /disconnect           clear memory and wait for /connect
  /connect              connect again
  /quit                 leave, keeping memory for the next run

Scene analyses and idle timeouts are shown as they happen.

Examples:
  cookguide chat --knowledge ./pasta.json
  cookguide chat --session pasta-night --plain -o json < script.txt`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&flagChatSession, "session", "", "session id (default: random); reusing one restores its memory")
	chatCmd.Flags().StringVar(&flagChatPolicy, "policy", "", "policy file (default: built-in)")
	chatCmd.Flags().StringVar(&flagChatKnowledge, "knowledge", "", "video knowledge document: path, http(s) URL or s3://bucket/key")
	chatCmd.Flags().IntVar(&flagChatWidth, "width", 80, "frame width")
	chatCmd.Flags().BoolVar(&flagChatPlain, "plain", false, "print outcomes in the --output format instead of frames")

	rootCmd.AddCommand(chatCmd)
}

// chatView prints outcomes. Pushed outcomes arrive from the session
// goroutine, so printing is serialized.
type chatView struct {
	mu         sync.Mutex
	cmd        *cobra.Command
	out        io.Writer
	styles     cli.Styles
	transcript *cli.Transcript
	width      int
	plain      bool
	session    string
}

func (v *chatView) show(input string, o controller.Outcome) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.plain {
		if err := output(v.cmd, o); err != nil {
			fmt.Fprintf(v.cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return
	}
	fmt.Fprintln(v.out, v.frame(input, o).Render(v.width))
}

func (v *chatView) print(x any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := output(v.cmd, x); err != nil {
		fmt.Fprintf(v.cmd.ErrOrStderr(), "Error: %v\n", err)
	}
}

func (v *chatView) errorf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if !v.plain {
		msg = v.styles.Alert.Render(msg)
	}
	fmt.Fprintln(v.cmd.ErrOrStderr(), msg)
}

func (v *chatView) frame(input string, o controller.Outcome) cli.Frame {
	f := cli.Frame{
		Styles:   v.styles,
		Title:    "cookguide " + v.session,
		Status:   o.To.String(),
		Help:     chatHelp,
		MaxLines: 12,
	}
	if input != "" {
		f.Sections = append(f.Sections, cli.Section{Label: "You", Lines: []string{input}})
	}
	if r := o.Result; r != nil {
		lines := []string{r.Response}
		if len(r.VideoSegmentIndex) > 0 {
			lines = append(lines, "segments: "+joinInts(r.VideoSegmentIndex))
		}
		if p := r.Playback; p != nil {
			seg := "current"
			if p.SegmentIndex != nil {
				seg = strconv.Itoa(*p.SegmentIndex)
			}
			lines = append(lines, fmt.Sprintf("playback: %s (segment %s)", p.Action, seg))
		}
		f.Sections = append(f.Sections, cli.Section{Label: "Assistant", Lines: lines})
	}
	if s := o.Scene; s != nil {
		f.Sections = append(f.Sections, cli.Section{Label: "Scene", Lines: []string{
			fmt.Sprintf("valid=%t correct=%t order=%t progressed=%t",
				s.IsValidCookingStep, s.IsStepCorrect, s.IsCorrectProcedureOrder, s.HasProgressedToProcedure),
			s.StepAnalysis,
			s.ImprovementInstructions,
		}})
	}
	transition := fmt.Sprintf("%s: %s -> %s (%s)", o.Event, o.From, o.To, o.Status)
	lines := []string{transition}
	if o.Detail != "" {
		lines = append(lines, o.Detail)
	}
	f.Sections = append(f.Sections, cli.Section{Label: "Transition", Lines: lines})
	if logs := v.transcript.Lines(); len(logs) > 0 {
		f.Sections = append(f.Sections, cli.Section{Label: "Log", Lines: logs})
	}
	return f
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

var errQuit = errors.New("quit")

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	transcript := cli.NewTranscript(8)
	logger := slog.Default()
	if !flagChatPlain {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(transcript, &slog.HandlerOptions{Level: level}))
	}

	e, err := openEngine(ctx, engineOptions{
		Policy:    flagChatPolicy,
		Knowledge: flagChatKnowledge,
		Models:    true,
		Store:     true,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer e.Close()

	id := flagChatSession
	if id == "" {
		id = "chat-" + uuid.NewString()[:8]
	}
	view := &chatView{
		cmd:        cmd,
		out:        cmd.OutOrStdout(),
		styles:     cli.NewStyles(cli.DefaultTheme),
		transcript: transcript,
		width:      flagChatWidth,
		plain:      flagChatPlain,
		session:    id,
	}

	pushed := make(chan controller.Outcome, 16)
	sess, err := e.newSession(id, func(o controller.Outcome) {
		select {
		case pushed <- o:
		default:
			logger.Warn("chat: dropping outcome", "status", o.Status)
		}
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case o := <-pushed:
				if o.Status != controller.StatusNoChange {
					view.show("", o)
				}
			case <-done:
				return
			}
		}
	}()
	defer func() {
		sess.Close()
		close(done)
		wg.Wait()
	}()

	o, err := sess.Connect(ctx)
	if err != nil {
		return err
	}
	view.show("", o)

	sc := bufio.NewScanner(cmd.InOrStdin())
	sc.Buffer(make([]byte, 64<<10), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		err := chatLine(ctx, sess, view, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			view.errorf("Error: %v", err)
		}
	}
	return sc.Err()
}

// chatLine runs one input line against sess.
func chatLine(ctx context.Context, sess *controller.Session, view *chatView, line string) error {
	if !strings.HasPrefix(line, "/") {
		o, err := sess.Utter(ctx, line)
		if err != nil {
			return err
		}
		view.show(line, o)
		return nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	var (
		o   controller.Outcome
		err error
	)
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		view.errorf("%s", chatHelp)
		return nil
	case "state":
		snap, err := sess.Snapshot(ctx)
		if err != nil {
			return err
		}
		view.print(snap)
		return nil
	case "image":
		if rest == "" {
			return fmt.Errorf("usage: /image <path>")
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return err
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(rest)))
		if err := sess.SetImage(ctx, data, mimeType); err != nil {
			return err
		}
		view.errorf("image set: %s (%s)", rest, cli.FormatBytes(int64(len(data))))
		return nil
	case "event":
		ename, text, _ := strings.Cut(rest, " ")
		e, perr := dialogue.ParseEvent(ename)
		if perr != nil {
			return perr
		}
		o, err = sess.Submit(ctx, e, strings.TrimSpace(text))
		line = strings.TrimSpace(text)
	case "tick":
		o, err = sess.Tick(ctx)
		line = ""
	case "reset":
		o, err = sess.Reset(ctx)
		line = ""
	case "disconnect":
		o, err = sess.Disconnect(ctx)
		line = ""
	case "connect":
		o, err = sess.Connect(ctx)
		line = ""
	default:
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	if err != nil {
		return err
	}
	view.show(line, o)
	return nil
}
