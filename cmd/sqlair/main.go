package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/alecthomas/kong"
	"github.com/tobsdb/sqlair/internal/conn"
	"github.com/tobsdb/sqlair/internal/query"
	"github.com/tobsdb/sqlair/internal/registry"
	"github.com/tobsdb/sqlair/internal/table"
	"github.com/tobsdb/sqlair/pkg"
	client "github.com/tobsdb/sqlair/tools/client/go"
)

type Globals struct {
	LogLevel     string        `name:"log-level" enum:"none,error,info,debug" default:"error" env:"SQLAIR_LOG_LEVEL" help:"Log level (none, error, info, debug)"`
	Delimiter    string        `name:"delimiter" default:"," env:"SQLAIR_DELIMITER" help:"Cell delimiter for loading and saving tables (\\t for tab)"`
	NoQuote      bool          `name:"no-quote" env:"SQLAIR_NO_QUOTE" help:"Only quote saved cells that need it"`
	Newline      string        `name:"newline" enum:"lf,crlf" default:"lf" env:"SQLAIR_NEWLINE" help:"Line terminator for saved tables (lf, crlf)"`
	FetchTimeout time.Duration `name:"fetch-timeout" default:"30s" env:"SQLAIR_FETCH_TIMEOUT" help:"Timeout for loading tables from URLs"`
}

func (g *Globals) format() (table.Format, error) {
	delimiter := g.Delimiter
	if delimiter == `\t` {
		delimiter = "\t"
	}
	if utf8.RuneCountInString(delimiter) != 1 {
		return table.Format{}, fmt.Errorf("delimiter must be a single character, got %q", g.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(delimiter)

	newline := "\n"
	if g.Newline == "crlf" {
		newline = "\r\n"
	}
	return table.Format{Delimiter: r, Quote: !g.NoQuote, Newline: newline}, nil
}

func (g *Globals) registry() (*registry.Registry, error) {
	f, err := g.format()
	if err != nil {
		return nil, err
	}
	return registry.New(registry.Options{Format: f, FetchTimeout: g.FetchTimeout}), nil
}

type ReplCmd struct{}

func (c *ReplCmd) Run(ctx context.Context, g *Globals) error {
	tables, err := g.registry()
	if err != nil {
		return err
	}
	return conn.RunREPL(ctx, query.NewExecutor(tables), os.Stdin, os.Stdout)
}

type ServeCmd struct {
	Port     int `name:"port" short:"p" default:"8080" env:"SQLAIR_PORT" help:"Listening port"`
	MaxConns int `name:"max-conns" default:"20" env:"SQLAIR_MAX_CONNS" help:"Requests served at once"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	tables, err := g.registry()
	if err != nil {
		return err
	}
	s, err := conn.NewServer(tables, conn.ServerOptions{Port: c.Port, MaxConns: c.MaxConns})
	if err != nil {
		return err
	}
	return s.Listen(ctx)
}

type ExecCmd struct {
	Remote     string   `name:"remote" env:"SQLAIR_REMOTE" help:"Websocket url of a running server, e.g. ws://localhost:8080/ws"`
	Statements []string `arg:"" required:"" help:"Statements to run in order"`
}

func (c *ExecCmd) Run(ctx context.Context, g *Globals) error {
	if c.Remote != "" {
		return c.runRemote()
	}

	tables, err := g.registry()
	if err != nil {
		return err
	}
	session := conn.NewSession(query.NewExecutor(tables))
	for _, sql := range c.Statements {
		if ctx.Err() != nil || !session.Process(ctx, sql, os.Stdout) {
			break
		}
	}
	return nil
}

func (c *ExecCmd) runRemote() error {
	cl, err := client.NewClient(c.Remote)
	if err != nil {
		return err
	}
	if err := cl.Connect(); err != nil {
		return err
	}
	defer cl.Disconnect()

	for _, sql := range c.Statements {
		res, err := cl.Query(sql)
		if err != nil {
			return err
		}
		fmt.Print(res.Data)
		if res.Message != "" {
			fmt.Printf("Error: %s\n", res.Message)
		}
	}
	return nil
}

var cli struct {
	Globals

	Repl  ReplCmd  `cmd:"" default:"1" help:"Read statements from stdin (default)"`
	Serve ServeCmd `cmd:"" help:"Serve statements over HTTP and websockets"`
	Exec  ExecCmd  `cmd:"" help:"Run statements given as arguments"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Name("sqlair"),
		kong.Description("SQL-like statements over delimited text tables."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&cli.Globals),
	)

	pkg.SetLogLevel(pkg.ParseLogLevel(cli.LogLevel))
	if err := kctx.Run(); err != nil {
		pkg.FatalLog("sqlair failed", "err", err)
	}
}
