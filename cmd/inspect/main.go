package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"support-flow/internal"
	"support-flow/repositories"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load()
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	prefix := flag.String("prefix", internal.DefaultInspectPrefix, "Prefix to scan (msg:, msgid:, presence:, conv:, user:)")
	port := flag.Int("http", 0, "Serve the records on this port instead of printing them")
	flag.Parse()
	if *dbPath == "" {
		log.Fatal("No database: set BADGER_FILEPATH or pass -db")
	}

	// BypassLockGuard lets the inspector open a store held by a running desk
	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *port > 0 {
		serve(db, *port)
		return
	}
	if err = printRecords(os.Stdout, db, *prefix); err != nil {
		log.Fatal("Scan failed: ", err)
	}
}

func serve(db *badger.DB, port int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	app := internal.NewDebugServer(db, nil, func() map[string]any {
		return map[string]any{
			"Status": "Read-only",
			"Time":   time.Now().Format(time.RFC822),
		}
	})
	internal.StartDebugServer(logs.GetLoggerFromString("INFO"), app, port)
	<-ctx.Done()
	_ = app.Shutdown()
}

func printRecords(out io.Writer, db *badger.DB, prefix string) error {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Entity", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				r := repositories.Describe(string(item.Key()), v)
				table.Append([]string{r.Key, r.Kind, r.Timestamp, r.Entity, r.Detail})
				return nil
			})
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	fmt.Fprintf(out, "\n%d record(s) under %q\n", count, prefix)
	return nil
}
