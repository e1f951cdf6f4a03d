// Command badger_inspect dumps the conversation store as a table, for
// poking at a server's data directory offline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"chatwire/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// Default prefix targets messages and skips the sequence keys
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "ID", "At", "Sender", "Recipient", "Body"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			if strings.HasPrefix(string(item.Key()), "seq:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				msg, err := repositories.DecodeStored(v)
				if err != nil {
					fmt.Printf("Error decoding key %s: %v\n", string(item.Key()), err)
					return nil
				}

				body := msg.Text
				if msg.IsImage() {
					body = "[image] " + truncate(msg.Image, 40)
				}

				table.Append([]string{
					string(item.Key()),
					fmt.Sprintf("%d", msg.ID),
					msg.CreatedAt.Format("15:04:05"),
					msg.SenderID,
					msg.RecipientID,
					truncate(body, 60),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	return badger.Open(opts)
}
