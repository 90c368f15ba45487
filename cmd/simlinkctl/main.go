package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/simlink/internal/auth"
	"github.com/danmuck/simlink/internal/client"
	"github.com/danmuck/simlink/internal/config"
	"github.com/danmuck/simlink/internal/logging"
	"github.com/danmuck/simlink/internal/protocol/datadef"
	"github.com/danmuck/simlink/internal/protocol/recv"
	"github.com/danmuck/simlink/internal/protocol/session"
	"github.com/danmuck/simlink/internal/protocol/wire"
	"github.com/danmuck/simlink/internal/statusapi"
	"github.com/rs/zerolog"
)

const maxEventClients = 16

func main() {
	configPath := flag.String("config", "cmd/simlinkctl/config.toml", "path to config.toml")
	subscribe := flag.String("subscribe", "", "additional system event to subscribe to")
	statusAddr := flag.String("status", "", "status API listen address (overrides status_addr)")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadRuntimeConfig(*configPath, *statusAddr, *subscribe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "simlinkctl: %v\n", err)
		os.Exit(1)
	}
	lc := logging.DefaultConfig(logging.ProfileRuntime)
	lc.Level = cfg.LogLevel
	lc.JSON = cfg.LogJSON
	logging.ApplyEnv(&lc)
	logging.Apply(lc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logging.For("simlinkctl")); err != nil {
		fmt.Fprintf(os.Stderr, "simlinkctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	c, err := client.New(cfg.ClientConfig(), cfg.Resolver(), logging.For("client"))
	if err != nil {
		return err
	}
	defer c.Close()

	events := statusapi.NewBroadcaster(maxEventClients, logging.For("broadcast"))
	if err := installHandlers(c, events, logger); err != nil {
		return err
	}

	if cfg.StatusAddr != "" {
		opts := statusapi.Options{
			Stats:       c,
			Broadcaster: events,
			Logger:      logging.For("statusapi"),
		}
		if cfg.StatusToken != "" {
			opts.Auth = auth.StaticToken{Token: cfg.StatusToken}
		}
		srv := statusapi.New(opts)
		go func() {
			if err := srv.Run(ctx, cfg.StatusAddr); err != nil {
				logger.Error().Err(err).Msg("statusapi.stopped")
			}
		}()
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	open, err := c.WaitOpen(ctx)
	if err != nil {
		return err
	}
	logger.Info().Str("host", open.ApplicationName).Msg("simlinkctl.ready")

	if err := setup(c.Session(), cfg, logger); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("simlinkctl.shutdown")
		return nil
	case <-c.Done():
		return c.Err()
	}
}

// setup registers every configured definition, requests it once per second
// and subscribes to the configured system events.
func setup(sess *session.Session, cfg config.Config, logger zerolog.Logger) error {
	for i, def := range cfg.Definitions {
		fields, err := def.DataFields()
		if err != nil {
			return err
		}
		if n, err := sess.RegisterClass(def.ID, fields); err != nil {
			return fmt.Errorf("register definition %d (%d/%d fields): %w", def.ID, n, len(fields), err)
		}
		objType, err := def.ObjectType()
		if err != nil {
			return err
		}
		requestID := uint32(i + 1)
		if objType == datadef.ObjectUser {
			err = sess.RequestDataOnSimObject(session.ObjectRequest{
				RequestID:    requestID,
				DefinitionID: def.ID,
				ObjectID:     datadef.ObjectIDUser,
				Period:       datadef.PeriodSecond,
				Flags:        datadef.RequestFlagDefault,
			})
		} else {
			// By-type requests are one-shot; the host replies once per object.
			err = sess.RequestDataOnSimObjectType(requestID, def.ID, def.Radius, objType)
		}
		if err != nil {
			return err
		}
		logger.Info().Uint32("definition", def.ID).Int("fields", len(fields)).Stringer("object", objType).Msg("simlinkctl.definition_requested")
	}

	for i, name := range cfg.Events {
		if err := sess.SubscribeToSystemEvent(uint32(i+1), name); err != nil {
			return err
		}
		logger.Info().Str("event", name).Int("client_event_id", i+1).Msg("simlinkctl.subscribed")
	}
	return nil
}

// dataRecord carries a SimObjectData frame with its decoded values.
type dataRecord struct {
	recv.SimObjectData
	Values map[string]any `json:"values,omitempty"`
}

func installHandlers(c *client.Client, events *statusapi.Broadcaster, logger zerolog.Logger) error {
	d := c.Dispatcher()

	c.OnOpen(func(o recv.Open) { events.Publish(o) })
	c.OnQuit(func() {
		logger.Info().Msg("simlinkctl.host_quit")
		events.Publish(recv.Quit{})
	})

	errs := []error{recv.On(d, recv.KindException, func(e recv.Exception) {
		events.Publish(e)
	})}
	errs = append(errs, recv.On(d, recv.KindEvent, func(e recv.Event) {
		logger.Info().Uint32("event_id", e.EventID).Uint32("data", e.Data).Msg("simlinkctl.event")
		events.Publish(e)
	}))
	errs = append(errs, recv.On(d, recv.KindEventFilename, func(e recv.EventFilename) {
		logger.Info().Uint32("event_id", e.EventID).Str("file", e.FileName).Msg("simlinkctl.event_filename")
		events.Publish(e)
	}))
	errs = append(errs, recv.On(d, recv.KindSystemState, func(s recv.SystemState) {
		logger.Info().Uint32("request_id", s.RequestID).Int32("int", s.DataInteger).Str("string", s.DataString).Msg("simlinkctl.system_state")
		events.Publish(s)
	}))

	onData := func(m recv.SimObjectData) {
		rec := dataRecord{SimObjectData: m}
		if sess := c.Session(); sess != nil {
			if values, err := decodeData(sess, m); err != nil {
				logger.Warn().Err(err).Uint32("definition", m.DefineID).Msg("simlinkctl.data_decode_failed")
			} else {
				rec.Values = values
			}
		}
		logger.Info().
			Stringer("kind", m.Kind()).
			Uint32("request_id", m.RequestID).
			Uint32("object_id", m.ObjectID).
			Uint32("entry", m.EntryNumber).
			Uint32("out_of", m.OutOf).
			Interface("values", rec.Values).
			Msg("simlinkctl.data")
		events.Publish(rec)
	}
	errs = append(errs,
		recv.On(d, recv.KindSimObjectData, onData),
		recv.On(d, recv.KindSimObjectDataByType, onData),
	)

	d.OnUnhandled(func(u recv.Unhandled) {
		logger.Debug().Stringer("kind", u.MessageKind).Int("bytes", len(u.Payload)).Msg("simlinkctl.unhandled")
	})
	return errors.Join(errs...)
}

func decodeData(sess *session.Session, m recv.SimObjectData) (map[string]any, error) {
	def, ok := sess.Definition(m.DefineID)
	if !ok {
		return nil, fmt.Errorf("definition %d not registered", m.DefineID)
	}
	r := wire.NewReader(m.Data)
	var (
		values []datadef.Value
		err    error
	)
	if int32(m.Flags)&datadef.RequestFlagTagged != 0 {
		values, err = datadef.DecodeTagged(def, int(m.DefineCount), r)
	} else {
		values, err = datadef.DecodeValues(def, r)
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	for _, v := range values {
		out[v.DatumName] = v.Any()
	}
	return out, nil
}

