package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/iainlane/fiblight/internal/bridge"
	"github.com/iainlane/fiblight/internal/config"
	"github.com/iainlane/fiblight/internal/fibaro"
	"github.com/iainlane/fiblight/internal/light"
	"github.com/iainlane/fiblight/internal/mqtt"
	"github.com/iainlane/fiblight/internal/store"
)

var errLightRequired = errors.New("a light entity or device id is required")

var (
	cfg        *config.Config
	client     *fibaro.Client
	configPath string
	logLevel   string
	timeout    int
)

// setupLights discovers the controller's lights and wraps each in an adapter.
func setupLights(ctx context.Context, discoverer Discoverer) ([]*light.Light, error) {
	discovered, err := discoverer.Discover(ctx)
	if err != nil {
		return nil, err
	}

	lights := make([]*light.Light, 0, len(discovered))
	for _, d := range discovered {
		logrus.WithFields(logrus.Fields{
			"entity": d.EntityID(),
			"device": d.Device.ID(),
			"room":   d.Room,
		}).Debug("Discovered light")
		lights = append(lights, light.New(d.Device, d.EntityID()))
	}
	return lights, nil
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	conf := config.Default()
	if configPath != "" {
		var err error
		conf, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	if c.IsSet("url") {
		conf.Controller.URL = c.String("url")
	}
	if c.IsSet("username") {
		conf.Controller.Username = c.String("username")
	}
	if c.IsSet("password") {
		conf.Controller.Password = c.String("password")
	}
	if c.IsSet("log-level") {
		conf.Log.Level = logLevel
	}
	if c.IsSet("timeout") {
		conf.Controller.Timeout = config.Duration(time.Duration(timeout) * time.Second)
	}

	return conf, conf.Validate()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := &cli.App{
		Name:  "fiblight",
		Usage: "Control Fibaro Home Center lights",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to a YAML config file",
				EnvVars:     []string{"FIBLIGHT_CONFIG"},
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Home Center base URL (http://host)",
				EnvVars: []string{"FIBARO_URL"},
			},
			&cli.StringFlag{
				Name:    "username",
				Usage:   "Home Center user",
				EnvVars: []string{"FIBARO_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Home Center password",
				EnvVars: []string{"FIBARO_PASSWORD"},
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Level of logging",
				Value:       "info",
				Destination: &logLevel,
			},
			&cli.IntFlag{
				Name:        "timeout",
				Usage:       "Timeout in seconds for controller requests",
				Value:       10,
				Destination: &timeout,
			},
		},

		Before: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return nil
			}

			var err error
			cfg, err = loadConfig(c)
			if err != nil {
				return err
			}

			level, err := logrus.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)

			client = fibaro.NewClient(
				cfg.Controller.URL,
				cfg.Controller.Username,
				cfg.Controller.Password,
				&http.Client{Timeout: cfg.Controller.Timeout.Duration()},
			)
			return nil
		},

		After: func(c *cli.Context) error {
			if client != nil {
				client.Close()
			}
			return nil
		},

		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List lights known to the controller",
				Action: func(c *cli.Context) error { return listLights(ctx) },
			},
			{
				Name:      "status",
				Usage:     "Poll a light and print its state",
				ArgsUsage: "<entity or device id>",
				Action:    func(c *cli.Context) error { return printLightStatus(ctx, c.Args().First()) },
			},
			{
				Name:      "on",
				Usage:     "Turn a light on",
				ArgsUsage: "<entity or device id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "brightness", Usage: "Brightness 0-255"},
					&cli.IntFlag{Name: "brightness-pct", Usage: "Brightness 0-100, takes priority over --brightness"},
					&cli.IntFlag{Name: "white", Usage: "White channel 0-255"},
					&cli.StringFlag{Name: "hs", Usage: "Hue,saturation e.g. 30,100"},
					&cli.StringFlag{Name: "rgb", Usage: "Hex color e.g. #ff8000, converted to hue and saturation"},
				},
				Action: func(c *cli.Context) error {
					opts, err := turnOnOptions(c)
					if err != nil {
						return err
					}
					return setLightState(ctx, c.Args().First(), true, opts)
				},
			},
			{
				Name:      "off",
				Usage:     "Turn a light off",
				ArgsUsage: "<entity or device id>",
				Action: func(c *cli.Context) error {
					return setLightState(ctx, c.Args().First(), false, light.TurnOnOptions{})
				},
			},
			{
				Name:   "serve",
				Usage:  "Poll lights and mirror them over MQTT until interrupted",
				Action: func(c *cli.Context) error { return serve(ctx) },
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logrus.Info("Interrupted")
			return
		}
		logrus.Fatal(err)
	}
}

func commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.Controller.Timeout.Duration()*3)
}

func discover(ctx context.Context, opts ...bridge.Option) (*bridge.Bridge, error) {
	lights, err := setupLights(ctx, &RealDiscoverer{Client: client})
	if err != nil {
		return nil, err
	}
	return bridge.New(lights, opts...), nil
}

func listLights(ctx context.Context) error {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	b, err := discover(ctx)
	if err != nil {
		return err
	}
	for _, l := range b.Lights() {
		fmt.Println(DeviceString(l))
	}
	return nil
}

func printLightStatus(ctx context.Context, key string) error {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	if key == "" {
		return errLightRequired
	}
	b, err := discover(ctx)
	if err != nil {
		return err
	}
	l, err := b.Lookup(key)
	if err != nil {
		return err
	}
	if err := l.Update(ctx); err != nil {
		return err
	}

	fmt.Println(DeviceString(l))
	return nil
}

// setLightState turns a light on or off. The remembered brightness is kept
// in the database so "off" followed by "on" restores the level across runs.
func setLightState(ctx context.Context, key string, on bool, opts light.TurnOnOptions) error {
	ctx, cancel := commandContext(ctx)
	defer cancel()

	if key == "" {
		return errLightRequired
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := discover(ctx, bridge.WithStore(db))
	if err != nil {
		return err
	}
	l, err := b.Lookup(key)
	if err != nil {
		return err
	}

	b.Restore(ctx)
	if err := l.Update(ctx); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"entity": l.EntityID(),
		"on":     on,
	}).Debug("Updating light")

	return b.HandleCommand(ctx, l.EntityID(), mqtt.Command{On: on, Options: opts})
}

func turnOnOptions(c *cli.Context) (light.TurnOnOptions, error) {
	var opts light.TurnOnOptions
	var err error
	if opts.Brightness, err = intFlagInRange(c, "brightness", 0, 255); err != nil {
		return opts, err
	}
	if opts.BrightnessPct, err = intFlagInRange(c, "brightness-pct", 0, 100); err != nil {
		return opts, err
	}
	if opts.WhiteValue, err = intFlagInRange(c, "white", 0, 255); err != nil {
		return opts, err
	}
	if c.IsSet("hs") && c.IsSet("rgb") {
		return opts, errors.New("--hs and --rgb are mutually exclusive")
	}
	if c.IsSet("hs") {
		hs, err := parseHS(c.String("hs"))
		if err != nil {
			return opts, err
		}
		opts.HSColor = &hs
	}
	if c.IsSet("rgb") {
		hs, err := parseRGB(c.String("rgb"))
		if err != nil {
			return opts, err
		}
		opts.HSColor = &hs
	}
	return opts, nil
}

func intFlagInRange(c *cli.Context, name string, lo, hi int) (*int, error) {
	if !c.IsSet(name) {
		return nil, nil
	}
	v := c.Int(name)
	if v < lo || v > hi {
		return nil, fmt.Errorf("--%s must be between %d and %d (got %d)", name, lo, hi, v)
	}
	return &v, nil
}

// parseRGB accepts a hex color such as "#ff8000" and returns its hue and
// saturation. Brightness is set separately.
func parseRGB(s string) (light.HS, error) {
	col, err := colorful.Hex(s)
	if err != nil {
		return light.HS{}, fmt.Errorf("rgb must be a hex color like #ff8000: %w", err)
	}
	r, g, b := col.RGB255()
	return light.RGBToHS(int(r), int(g), int(b)), nil
}

func parseHS(s string) (light.HS, error) {
	hue, sat, ok := strings.Cut(s, ",")
	if !ok {
		return light.HS{}, fmt.Errorf("hs must be hue,saturation (got %q)", s)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(hue), 64)
	if err != nil || h < 0 || h > 360 {
		return light.HS{}, fmt.Errorf("hue must be a number between 0 and 360 (got %s)", hue)
	}
	sv, err := strconv.ParseFloat(strings.TrimSpace(sat), 64)
	if err != nil || sv < 0 || sv > 100 {
		return light.HS{}, fmt.Errorf("saturation must be a number between 0 and 100 (got %s)", sat)
	}
	return light.HS{Hue: h, Saturation: sv}, nil
}

func serve(ctx context.Context) error {
	discoverCtx, cancel := commandContext(ctx)
	lights, err := setupLights(discoverCtx, &RealDiscoverer{Client: client})
	cancel()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []bridge.Option{
		bridge.WithStore(db),
		bridge.WithInterval(cfg.PollInterval.Duration()),
	}

	var broker *mqtt.Client
	if cfg.MQTT.Enabled() {
		broker, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return err
		}
		defer broker.Close()
		opts = append(opts, bridge.WithPublisher(broker, broker.Topics()))
	}

	b := bridge.New(lights, opts...)
	b.Start(ctx)

	if broker != nil {
		if err := broker.Subscribe(broker.Topics().AllCommands(), b.MessageHandler(ctx)); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"lights":   len(lights),
		"interval": cfg.PollInterval.Duration(),
		"mqtt":     cfg.MQTT.Enabled(),
	}).Info("Serving lights")

	return b.Run(ctx)
}
