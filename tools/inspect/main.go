package main

import (
	"flag"
	"fmt"
	"huddle/domain"
	"huddle/repositories"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Lists the stored message copies, unread ones highlighted.
//
//	go run ./tools/inspect -db ./data -user bob
//	go run ./tools/inspect -db ./data -team t1
func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	user := flag.String("user", "", "Inbox to list")
	team := flag.String("team", "", "Team to list")
	unreadOnly := flag.Bool("unread", false, "Only list unread copies")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	prefix := ""
	switch {
	case *user != "":
		prefix = fmt.Sprintf("inbox:%s:", *user)
	case *team != "":
		prefix = fmt.Sprintf("team:%s:", *team)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Time", "Sender", "Receiver", "Type", "Content", "Read"})
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

	repository := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError))
	unread := 0
	err = repository.Walk(prefix, func(key string, m domain.Message, err error) error {
		if err != nil {
			fmt.Printf("Error decoding key %s: %v\n", key, err)
			return nil
		}
		// the copy in the receiver's inbox is the one that counts
		isUnread := m.Kind == domain.ScopePrivate && !m.IsRead &&
			strings.HasPrefix(key, fmt.Sprintf("msg:inbox:%s:", m.ReceiverID))
		if *unreadOnly && !isUnread {
			return nil
		}
		row := []string{
			key,
			m.Kind.String(),
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.SenderID,
			m.ReceiverID,
			string(m.Type),
			abbreviate(m.Content, 40),
			readFlag(m),
		}
		if isUnread {
			unread++
			for i := range row {
				row[i] = color.New(color.FgYellow, color.OpBold).Render(row[i])
			}
		}
		table.Append(row)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf(" %d unread ", unread)))
}

func readFlag(m domain.Message) string {
	switch {
	case m.Kind == domain.ScopeTeam:
		return "-"
	case m.IsRead:
		return "yes"
	default:
		return "no"
	}
}

func abbreviate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
