package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelajev/slowly-unhinged/pkg/audio"
	"github.com/shelajev/slowly-unhinged/pkg/background"
	"github.com/shelajev/slowly-unhinged/pkg/dials"
	"github.com/shelajev/slowly-unhinged/pkg/dmr"
	"github.com/shelajev/slowly-unhinged/pkg/gesture"
	"github.com/shelajev/slowly-unhinged/pkg/hub"
	"github.com/shelajev/slowly-unhinged/pkg/kv"
	"github.com/shelajev/slowly-unhinged/pkg/nanobanana"
	"github.com/shelajev/slowly-unhinged/pkg/pipeline"
	"github.com/shelajev/slowly-unhinged/pkg/session"
	"github.com/shelajev/slowly-unhinged/pkg/settings"
	"github.com/shelajev/slowly-unhinged/pkg/tunnel"
	"github.com/shelajev/slowly-unhinged/pkg/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the companion",
	Long: `Run starts everything the companion needs: the local HTTP API with
the websocket frame feed, the gesture recognizer loop, and the session
coordinator. A clap gesture (or Ctrl-C to quit) is the only control
surface after that.`,
	RunE: runCompanion,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runCompanion(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.NewBadger(kv.BadgerOptions{
		Dir: filepath.Join(cfg.DataDir, "kv"),
	})
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	defer store.Close()

	cfgStore := settings.New(store, log)
	dialCtl := dials.New(cfgStore, cfgStore.LoadWheels(ctx))

	device := &audio.FFmpegDevice{
		Binary:      cfg.Capture.Binary,
		InputFormat: cfg.Capture.InputFormat,
		InputDevice: cfg.Capture.InputDevice,
	}
	mic := audio.NewSharedDevice(device)
	defer mic.Close()

	runner := dmr.NewClient(dmr.WithBaseURL(cfg.DMRBaseURL))
	bgStore := background.NewStore()
	frames := web.NewFrameFeed()

	pipe := pipeline.New(pipeline.Options{
		Recorder: mic,
		Speech:   runner,
		Renderer: &keyedRenderer{settings: cfgStore},
		Models:   cfgStore,
		Store:    bgStore,
		Logger:   log,
		Reporter: func(ev pipeline.Event) {
			if ev.Err != nil {
				log.Warn("pipeline event", "cycle", ev.Cycle, "stage", string(ev.Stage), "err", ev.Err)
			}
		},
	})

	coord := session.New(session.Options{
		Dials:     dialCtl,
		Pipeline:  pipe,
		Registrar: hub.NewClient(hub.WithBaseURL(cfg.HubURL)),
		StartTunnel: func(ctx context.Context, port int) (session.TunnelHandle, error) {
			t, err := tunnel.Start(ctx, tunnel.Options{Port: port})
			if err != nil {
				return nil, err
			}
			return t, nil
		},
		Models:   runner,
		Settings: cfgStore,
		Prober:   mic,
		Port:     cfg.Port,
		Logger:   log,
	})

	loop := gesture.NewLoop(gesture.LoopOptions{
		Recognizer: gesture.NewRecognizer(gesture.DefaultConfig()),
		Source:     frames,
		OnCommand: func(cmd gesture.Command) {
			coord.HandleCommand(ctx, cmd)
		},
		OnStatus: func(s gesture.Status) {
			log.Debug("gesture status", "status", int(s))
		},
		Locked: coord.Locks().GesturesLocked,
		Logger: log,
	})
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("gesture loop exited", "err", err)
		}
	}()

	api := web.NewServer(bgStore, cfgStore, frames, log)
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: api.Router(),
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("companion API listening", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("companion API: %w", err)
		}
	}

	log.Info("shutting down")
	coord.Stop(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	return nil
}

// keyedRenderer defers creating the image client until a key is available:
// the nano banana key may arrive only after session start, pushed by the
// hub. The client is rebuilt when the resolved key changes.
type keyedRenderer struct {
	settings *settings.Settings

	mu       sync.Mutex
	key      string
	renderer *nanobanana.Renderer
}

func (k *keyedRenderer) Render(ctx context.Context, prompt string, previous *background.Image) (*background.Image, error) {
	key, err := k.settings.APIKey(ctx)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	if k.renderer == nil || k.key != key {
		r, err := nanobanana.New(ctx, key)
		if err != nil {
			k.mu.Unlock()
			return nil, err
		}
		k.renderer = r
		k.key = key
	}
	r := k.renderer
	k.mu.Unlock()

	var prev *nanobanana.Image
	if previous != nil {
		prev = &nanobanana.Image{Data: previous.Data, MIME: previous.MIME}
	}
	img, err := r.Render(ctx, prompt, prev)
	if err != nil {
		return nil, err
	}
	return &background.Image{Data: img.Data, MIME: img.MIME}, nil
}
