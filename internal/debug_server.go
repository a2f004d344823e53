package internal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"support-flow/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
)

//go:embed inspect.html
var templatesFS embed.FS

var inspectTemplate = template.Must(template.ParseFS(templatesFS, "inspect.html"))

const DefaultInspectPrefix = "msg:"

type RowMapper func(key string, val []byte) repositories.Record
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []repositories.Record
	Stats  map[string]any
}

// NewDebugServer exposes the raw store under /inspect (HTML) and
// /inspect.json, and the stats under /stats.
func NewDebugServer(db *badger.DB, mapper RowMapper, stats StatsProvider) *fiber.App {
	if mapper == nil {
		mapper = repositories.Describe
	}
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/inspect", func(c *fiber.Ctx) error {
		data, err := page(db, c.Query("prefix", DefaultInspectPrefix), mapper, stats)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		var out bytes.Buffer
		if err = inspectTemplate.Execute(&out, data); err != nil {
			return err
		}
		c.Type("html", "utf-8")
		return c.Send(out.Bytes())
	})

	app.Get("/inspect.json", func(c *fiber.Ctx) error {
		data, err := page(db, c.Query("prefix", DefaultInspectPrefix), mapper, stats)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"prefix": data.Prefix, "items": data.Items})
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		if stats == nil {
			return c.JSON(fiber.Map{})
		}
		return c.JSON(stats())
	})
	return app
}

// StartDebugServer listens on port in the background until the app is shut down.
func StartDebugServer(log *slog.Logger, app *fiber.App, port int) {
	go func() {
		if err := app.Listen(fmt.Sprintf("0.0.0.0:%d", port)); err != nil {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	log.Info("Debug server started", "url", fmt.Sprintf("http://localhost:%d/inspect", port))
}

func page(db *badger.DB, prefix string, mapper RowMapper, stats StatsProvider) (PageData, error) {
	data := PageData{Prefix: prefix, Items: []repositories.Record{}, Stats: map[string]any{}}
	if stats != nil {
		data.Stats = stats()
	}
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				data.Items = append(data.Items, mapper(string(item.Key()), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return data, err
}

// MonitoringStats adapts the desk counters to the stats panel.
func (d *Desk) MonitoringStats() map[string]any {
	latest := d.Monitoring.GetLatest()
	return map[string]any{
		"Messages appended":    latest.MessagesAppended,
		"Messages deleted":     latest.MessagesDeleted,
		"Presence writes":      latest.PresenceWrites,
		"Deliveries":           latest.Deliveries,
		"Delivery retries":     latest.DeliveryRetries,
		"Dropped events":       latest.DroppedEvents,
		"Active subscriptions": latest.ActiveSubscriptions,
	}
}
