// Command modcli is a terminal tool for moderators: review recent
// comments, inspect the audit log, and delete abusive comments or
// submissions through the same store and permission-gate code paths the HTTP
// handlers use. The -as flag names the acting moderator; deletions fail
// unless that account owns the content or holds the matching capability.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/urlsfyi/urls/internal/audit"
	"github.com/urlsfyi/urls/internal/comments"
	"github.com/urlsfyi/urls/internal/config"
	"github.com/urlsfyi/urls/internal/output"
	"github.com/urlsfyi/urls/internal/reqctx"
	"github.com/urlsfyi/urls/internal/search"
	"github.com/urlsfyi/urls/internal/store"
	"github.com/urlsfyi/urls/internal/tid"
	"github.com/urlsfyi/urls/internal/urls"
	"github.com/urlsfyi/urls/internal/users"
)

const usage = `usage: modcli [flags] <command> [args]

commands:
  comments              list recent comments, newest first
  audit                 list recent audit events
  delete-comment <id>   delete a comment (requires -as)
  delete-url <id>       delete a url and its comments/upvotes (requires -as)

flags:
  -db <path>     database file (default: URLS_DB_PATH or ~/.urlsfyi/data.db)
  -as <email>    act as this user for delete commands
  -n <count>     rows to list (default 20)
  -json          emit JSON instead of rendered markdown
`

func main() {
	log.SetFlags(0)

	dbPath := flag.String("db", "", "database file path")
	asEmail := flag.String("as", "", "act as this user (email)")
	limit := flag.Int("n", 20, "rows to list")
	asJSON := flag.Bool("json", false, "emit JSON")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := *dbPath
	if path == "" {
		path = os.Getenv("URLS_DB_PATH")
	}
	if path == "" {
		path = "~/.urlsfyi/data.db"
	}

	db, err := store.Open(config.ExpandPath(path))
	if err != nil {
		log.Fatalf("modcli: %v", err)
	}
	defer db.Close()
	if err := audit.Init(db); err != nil {
		log.Fatalf("modcli: %v", err)
	}

	app := &cli{
		db:       db,
		users:    users.NewStore(db, nil),
		urls:     urls.NewStore(db),
		comments: comments.NewStore(db),
		renderer: &output.Renderer{Format: output.FormatMarkdown},
		asEmail:  *asEmail,
		limit:    *limit,
	}
	if *asJSON {
		app.renderer.Format = output.FormatJSON
	}

	ctx := context.Background()
	switch cmd := flag.Arg(0); cmd {
	case "comments":
		err = app.listComments(ctx)
	case "audit":
		err = app.listAudit()
	case "delete-comment":
		err = app.deleteComment(ctx, flag.Arg(1))
	case "delete-url":
		err = app.deleteURL(ctx, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("modcli: %v", err)
	}
}

type cli struct {
	db       *sql.DB
	users    *users.Store
	urls     *urls.Store
	comments *comments.Store
	renderer *output.Renderer
	asEmail  string
	limit    int
}

func (c *cli) listComments(ctx context.Context) error {
	rows, err := c.comments.ListRecent(ctx, c.limit)
	if err != nil {
		return err
	}

	doc := output.NewDoc().H1("Recent comments")
	if len(rows) == 0 {
		doc.Para("No comments yet.")
		return c.renderer.Print(doc.String(), rows)
	}

	table := make([][]string, 0, len(rows))
	for _, cm := range rows {
		table = append(table, []string{
			output.Code(cm.ID.String()),
			output.Truncate(cm.Text, 60),
			output.TimeAgo(cm.CreatedAt),
		})
	}
	doc.Table([]string{"ID", "Text", "Posted"}, table)
	doc.Para(fmt.Sprintf("%d comment(s). Delete with %s.", len(rows), output.Code("modcli -as <email> delete-comment <id>")))
	return c.renderer.Print(doc.String(), rows)
}

func (c *cli) listAudit() error {
	events, err := audit.Recent(c.limit)
	if err != nil {
		return err
	}

	doc := output.NewDoc().H1("Recent audit events")
	if len(events) == 0 {
		doc.Para("No events recorded.")
		return c.renderer.Print(doc.String(), events)
	}

	table := make([][]string, 0, len(events))
	for _, e := range events {
		table = append(table, []string{
			output.TimeAgo(e.Timestamp),
			e.Action,
			output.Truncate(e.Resource, 40),
			e.Result,
			e.UserEmail,
		})
	}
	doc.Table([]string{"When", "Action", "Resource", "Result", "User"}, table)
	return c.renderer.Print(doc.String(), events)
}

// actingContext resolves -as into an authenticated local context, so
// deletions run through the same capability gate as the HTTP API.
func (c *cli) actingContext(ctx context.Context) (*reqctx.Context, *users.User, error) {
	if c.asEmail == "" {
		return nil, nil, fmt.Errorf("delete commands require -as <email>")
	}
	u, err := c.users.ByEmail(ctx, c.asEmail)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve -as user: %w", err)
	}

	rctx := reqctx.NewLocal(ctx, c.db, reqctx.Collaborators{
		Users:  c.users,
		Search: search.Noop{},
	})
	rctx.Authenticate(u.ID)
	return rctx, u, nil
}

func (c *cli) deleteComment(ctx context.Context, rawID string) error {
	id, err := tid.Parse[tid.CommentKind](rawID)
	if err != nil {
		return fmt.Errorf("invalid comment id %q", rawID)
	}
	rctx, actor, err := c.actingContext(ctx)
	if err != nil {
		return err
	}

	cm, err := c.comments.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.comments.Delete(rctx, cm); err != nil {
		return err
	}

	audit.Success(audit.Event{
		UserEmail: actor.Email,
		RemoteIP:  rctx.RemoteIP(),
		UserAgent: rctx.UserAgent(),
		Action:    "comment.delete",
		Resource:  cm.ID.String(),
	})
	fmt.Printf("deleted comment %s\n", cm.ID)
	return nil
}

func (c *cli) deleteURL(ctx context.Context, rawID string) error {
	id, err := tid.Parse[tid.URLKind](rawID)
	if err != nil {
		return fmt.Errorf("invalid url id %q", rawID)
	}
	rctx, actor, err := c.actingContext(ctx)
	if err != nil {
		return err
	}

	u, err := c.urls.ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.urls.Delete(rctx, u); err != nil {
		return err
	}

	audit.Success(audit.Event{
		UserEmail: actor.Email,
		RemoteIP:  rctx.RemoteIP(),
		UserAgent: rctx.UserAgent(),
		Action:    "url.delete",
		Resource:  u.URL,
	})
	fmt.Printf("deleted %s (%s)\n", u.URL, u.ID)
	return nil
}
