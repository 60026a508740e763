// Command esdemo exercises the full engine end to end: an encrypted,
// compressed SQLite store, snapshotting, the notification log, and a
// follower re-publishing to an embedded NATS server.
package main

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/Unholster/eventsourcing/examples/wiki"
	"github.com/Unholster/eventsourcing/examples/worlds"
	"github.com/Unholster/eventsourcing/pkg/application"
	"github.com/Unholster/eventsourcing/pkg/cipher"
	"github.com/Unholster/eventsourcing/pkg/domain"
	"github.com/Unholster/eventsourcing/pkg/propagation"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	key, err := cipher.GenerateKey(32)
	if err != nil {
		return err
	}

	reg := newRegistry()
	app, err := application.New(reg, application.Environment{
		application.EnvInfrastructureFactory: application.FactorySQLite,
		application.EnvSQLiteDBName:          ":memory:",
		application.EnvIsSnapshottingEnabled: "yes",
		application.EnvCompressorTopic:       "zstd",
		application.EnvCipherTopic:           cipher.TopicAESGCM,
		application.EnvCipherKey:             base64.StdEncoding.EncodeToString(key),
	}, application.WithLogger(logger))
	if err != nil {
		return err
	}
	defer app.Close()

	// A world accumulates history.
	world := worlds.Create()
	world.MakeItSo("dinosaurs")
	world.MakeItSo("trucks")
	world.MakeItSo("internet")
	if _, err := app.Save(world); err != nil {
		return err
	}
	logger.Info("world saved", "id", world.ID(), "version", world.Version())

	if err := app.TakeSnapshot(world.ID()); err != nil {
		return err
	}

	// A page and its name index commit in one atomic save.
	page, index := wiki.CreatePage("Earth", "where the worlds live")
	if _, err := app.Save(page, index); err != nil {
		return err
	}
	page2, index2 := wiki.CreatePage("Earth", "second attempt")
	if _, err := app.Save(page2, index2); err != nil {
		logger.Info("duplicate page rejected", "error", err)
	}

	// Walk the notification log.
	for sectionID := "1,10"; sectionID != ""; {
		section, err := app.Log.Section(sectionID)
		if err != nil {
			return err
		}
		for _, n := range section.Items {
			fmt.Printf("notification %d  %s v%d  %s\n",
				n.ID, n.OriginatorID, n.OriginatorVersion, n.Topic)
		}
		sectionID = section.NextID
	}

	return follow(app, logger)
}

// follow forwards the whole log to an embedded NATS server and reads it
// back, demonstrating the pull-based propagation protocol.
func follow(app *application.Application, logger *slog.Logger) error {
	srv, err := propagation.StartEmbeddedServer()
	if err != nil {
		return err
	}
	defer srv.Shutdown()

	cfg := propagation.DefaultJetStreamConfig()
	cfg.URL = srv.URL()
	pub, err := propagation.NewJetStreamPublisher(cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	follower := propagation.NewFollower(
		"esdemo",
		app.Log,
		app.Infrastructure().Checkpoints,
		pub,
		propagation.WithLogger(logger),
	)
	count, err := follower.Poll()
	if err != nil {
		return err
	}
	logger.Info("notifications forwarded to NATS", "count", count)

	nc, err := nats.Connect(srv.URL())
	if err != nil {
		return err
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	sub, err := js.SubscribeSync(cfg.SubjectPrefix+".>", nats.DeliverAll())
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		msg, err := sub.NextMsg(nats.DefaultTimeout)
		if err != nil {
			return err
		}
		fmt.Printf("received %s (%d bytes)\n", msg.Subject, len(msg.Data))
	}

	return nil
}

func newRegistry() *domain.Registry {
	reg := domain.NewRegistry()
	worlds.Register(reg)
	wiki.Register(reg)
	return reg
}
