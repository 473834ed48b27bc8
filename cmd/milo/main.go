// Command milo is the voice assistant daemon.
//
// It waits for wake commands on a unix socket (or from the dashboard), plays
// a chime, and runs one conversation with the configured agent per wake.
//
// Usage:
//
//	ELEVENLABS_AGENT_ID=... milo --config milo.yaml
//
// Send a wake from another process with:
//
//	milo-ctl trigger
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/spf13/pflag"

	"github.com/selalipop/milo-firmware/internal/config"
	"github.com/selalipop/milo-firmware/internal/httpc"
	"github.com/selalipop/milo-firmware/internal/log"
	"github.com/selalipop/milo-firmware/pkg/audioio"
	"github.com/selalipop/milo-firmware/pkg/conversation"
	"github.com/selalipop/milo-firmware/pkg/display"
	"github.com/selalipop/milo-firmware/pkg/hub"
	"github.com/selalipop/milo-firmware/pkg/music"
	"github.com/selalipop/milo-firmware/pkg/notify"
	"github.com/selalipop/milo-firmware/pkg/tools"
	"github.com/selalipop/milo-firmware/pkg/wake"
	"github.com/selalipop/milo-firmware/pkg/web"
)

// piAudioDevice is the device name hint used on a Raspberry Pi, where the
// microphone and speaker are a USB sound card.
const piAudioDevice = "USB"

func main() {
	configPath := cli.StringP("config", "c", "milo.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level (overrides config)")
	backend := cli.StringP("backend", "b", "", "Audio backend: auto, portaudio, null, mock")
	noWeb := cli.Bool("no-web", false, "Disable the dashboard")
	cli.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *backend != "" {
		cfg.Audio.Backend = audioio.Backend(*backend)
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}

	log.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger := log.L()

	if err := run(cfg); err != nil {
		logger.Error("milo stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger := log.With("component", "milo")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if display.IsRaspberryPi() {
		logger.Info("running on a Raspberry Pi")
		if cfg.Audio.Device == "" {
			cfg.Audio.Device = piAudioDevice
		}
	}

	opts := cfg.SessionOptions()
	if cfg.Proxy.SOCKS5 != "" {
		client, dial, err := httpc.NewSOCKS5(cfg.Proxy.SOCKS5, httpc.DefaultTimeout)
		if err != nil {
			return err
		}
		opts = append(opts, conversation.WithHTTPClient(client), conversation.WithNetDialContext(dial))
		logger.Info("using SOCKS5 proxy", "addr", cfg.Proxy.SOCKS5)
	}
	opts = append(opts, conversation.WithLogger(log.L()))

	d := &daemon{
		logger: logger,
		source: wake.NewManual(),
		newConfig: func() *conversation.Config {
			c := conversation.DefaultConfig()
			c.Apply(opts...)
			return c
		},
		init:     cfg.InitiationData(),
		registry: tools.NewRegistry(log.L()),
		chime:    notify.NewChime(cfg.Wake.Chime, log.L()),
	}

	indicators := display.Tee{display.NewCLI(nil)}

	if cfg.Web.Enabled {
		statusHub := hub.New("status", log.L())
		go statusHub.Run(ctx)

		d.dash = web.NewServer(cfg.Web.Addr, d, statusHub, log.L())
		indicators = append(indicators, d.dash)
		d.dash.StartAsync()
		defer d.dash.Shutdown()
	}
	d.indicator = indicators

	d.newAudio = func() (audioio.Interface, error) {
		return audioio.New(cfg.Audio, log.L(), d.indicator)
	}

	if cfg.Tools.Music.Enabled {
		player := music.NewPlayer(cfg.Tools.Music.Binary, log.L())
		if err := d.registry.RegisterTool(d.observeTool(player.Tool())); err != nil {
			return err
		}
	}
	d.updateStatus(func(st *web.Status) { st.Tools = d.registry.Names() })

	sock, err := wake.Listen(cfg.Wake.SocketPath, d.source, log.L())
	if err != nil {
		return fmt.Errorf("wake socket: %w", err)
	}
	defer sock.Close()

	logger.Info("milo ready",
		"agent_id", cfg.Agent.ID,
		"audio_backend", cfg.Audio.Backend,
		"socket", sock.Path(),
		"tools", d.registry.Names(),
	)

	return d.Run(ctx)
}
