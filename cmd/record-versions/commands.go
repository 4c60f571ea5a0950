package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/txn2/record-versions/pkg/identity"
	"github.com/txn2/record-versions/pkg/platform"
	"github.com/txn2/record-versions/pkg/versions"
)

const readHeaderTimeout = 10 * time.Second

func runMigrate(_ context.Context, p *platform.Platform, _ []string, out io.Writer) error {
	if err := p.Migrate(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, "migrations applied")
	return err
}

func runPurge(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	all := fs.Bool("all", false, "Delete every version of every table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *all {
		if err := p.Versions().PurgeAll(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, "all versions deleted")
		return err
	}

	n, err := p.Versions().PurgeExpired(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%d expired versions deleted\n", n)
	return err
}

// recordFlags selects a record and the acting user.
type recordFlags struct {
	table    string
	id       int64
	username string
	userID   int64
	admin    bool
	modules  string
}

func (r *recordFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&r.table, "table", "", "Table name, e.g. tl_news")
	fs.Int64Var(&r.id, "id", 0, "Record id")
	r.registerActor(fs)
}

func (r *recordFlags) registerActor(fs *flag.FlagSet) {
	fs.StringVar(&r.username, "user", "", "Acting username")
	fs.Int64Var(&r.userID, "user-id", 0, "Acting user id")
	fs.BoolVar(&r.admin, "admin", false, "Act as an administrator")
	fs.StringVar(&r.modules, "modules", "", "Comma separated back-end modules of the acting user")
}

func (r *recordFlags) actor() *identity.Actor {
	a := &identity.Actor{ID: r.userID, Username: r.username, Admin: r.admin}
	for m := range strings.SplitSeq(r.modules, ",") {
		if m = strings.TrimSpace(m); m != "" {
			a.Modules = append(a.Modules, m)
		}
	}
	return a
}

func (r *recordFlags) handle(p *platform.Platform) (*versions.Handle, error) {
	if r.table == "" || r.id < 1 {
		return nil, errors.New("-table and -id are required")
	}
	return p.Versions().Record(r.table, r.id)
}

func runList(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error {
	var rf recordFlags
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	rf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	h, err := rf.handle(p)
	if err != nil {
		return err
	}
	list, err := h.Versions(ctx)
	if err != nil {
		return err
	}
	if list == nil {
		list = []versions.Summary{}
	}
	return writeJSON(out, list)
}

func runCompare(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error {
	var rf recordFlags
	var in versions.CompareInput
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	rf.register(fs)
	fs.IntVar(&in.FormFrom, "from", 0, "Version to compare from")
	fs.IntVar(&in.FormTo, "to", 0, "Version to compare to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	h, err := rf.handle(p)
	if err != nil {
		return err
	}
	cmp, err := h.Compare(ctx, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, cmp.Content)
	return err
}

func runRestore(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error {
	var rf recordFlags
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	rf.register(fs)
	version := fs.Int("version", 0, "Version to restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version < 1 {
		return errors.New("-version is required")
	}

	h, err := rf.handle(p)
	if err != nil {
		return err
	}
	actor := rf.actor()
	data, err := h.Restore(identity.WithActor(ctx, actor), *version, actor)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("version %d of %s.id=%d not found", *version, rf.table, rf.id)
	}
	return writeJSON(out, data)
}

func runAudit(ctx context.Context, p *platform.Platform, args []string, out io.Writer) error {
	var rf recordFlags
	var q versions.AuditQuery
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	rf.registerActor(fs)
	fs.IntVar(&q.Page, "page", 1, "Page number")
	fs.IntVar(&q.PageSize, "page-size", versions.DefaultAuditPageSize, "Versions per page")
	fs.StringVar(&q.RequestToken, "token", "", "Request token to put into edit links")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q.Actor = rf.actor()
	page, err := p.Versions().ListForAudit(ctx, q)
	if err != nil {
		return err
	}
	return writeJSON(out, page)
}

func runServe(ctx context.Context, p *platform.Platform, _ []string, _ io.Writer) error {
	cfg := p.Config().Server

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", p.Health().LivenessHandler())
	mux.Handle("GET /readyz", p.Health().ReadinessHandler())
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("starting platform: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return errors.Join(
		serveErr,
		p.Stop(shutdownCtx),
		srv.Shutdown(shutdownCtx),
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
