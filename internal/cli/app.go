// Package cli is the interactive console: the login prompt the gate drives
// and the table-editing REPL the engine backs. It owns all terminal I/O so
// the services stay testable without a terminal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kolobok/dbadmin/internal/display"
	"github.com/kolobok/dbadmin/internal/export"
	"github.com/kolobok/dbadmin/internal/models"
	"github.com/kolobok/dbadmin/internal/service"
)

// App is the post-login REPL.
type App struct {
	engine  *service.Engine
	catalog *display.Catalog
	reader  *LineReader
	out     io.Writer
	logger  *slog.Logger

	current string
}

func NewApp(engine *service.Engine, catalog *display.Catalog, reader *LineReader, out io.Writer, logger *slog.Logger) *App {
	return &App{
		engine:  engine,
		catalog: catalog,
		reader:  reader,
		out:     out,
		logger:  logger,
	}
}

// Run drives the command loop until quit, EOF, or context cancellation.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, `Type "help" for the command list.`)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		prompt := "> "
		if a.current != "" {
			prompt = a.catalog.TableName(a.current) + " > "
		}

		line, err := a.reader.ReadLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := a.dispatch(ctx, cmd, args); err != nil {
			a.printError(err)
		}
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		a.printHelp()
		return nil
	case "tables":
		return a.cmdTables(ctx)
	case "open":
		return a.cmdOpen(ctx, args)
	case "show":
		return a.cmdShow(ctx)
	case "add":
		return a.cmdAdd(ctx)
	case "set":
		return a.cmdSet(args)
	case "del":
		return a.cmdDelete(ctx, args)
	case "save":
		return a.cmdSave(ctx)
	case "refresh":
		return a.cmdRefresh(ctx)
	case "export":
		return a.cmdExport(ctx, args, false)
	case "exportall":
		return a.cmdExport(ctx, args, true)
	default:
		return fmt.Errorf("unknown command %q, type \"help\"", cmd)
	}
}

func (a *App) printHelp() {
	fmt.Fprint(a.out, `Commands:
  tables              list available tables
  open <table>        open a table for editing
  show                print the open table
  add                 add a row (interactive)
  set <row> <col> <value>
                      stage an edit on one field
  del <row>           delete a row immediately
  save                write staged edits back
  refresh             reload the open table, discarding staged edits
  export [file]       export the open table (XLSX, or CSV with a .csv name)
  exportall [file]    export every table to one XLSX workbook
  quit                exit
`)
}

func (a *App) cmdTables(ctx context.Context) error {
	names, err := a.engine.Tables(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		label := a.catalog.TableName(name)
		if label != name {
			fmt.Fprintf(a.out, "  %s (%s)\n", name, label)
		} else {
			fmt.Fprintf(a.out, "  %s\n", name)
		}
	}
	return nil
}

func (a *App) cmdOpen(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <table>")
	}
	if _, err := a.engine.Load(ctx, args[0]); err != nil {
		return err
	}
	a.current = args[0]
	return a.cmdShow(ctx)
}

func (a *App) requireOpen() error {
	if a.current == "" {
		return fmt.Errorf("no table open, use: open <table>")
	}
	return nil
}

func (a *App) cmdShow(ctx context.Context) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	t, err := a.engine.Load(ctx, a.current)
	if err != nil {
		return err
	}

	schema := t.Schema()
	header := make([]string, 0, len(schema.Columns)+1)
	header = append(header, "#")
	for _, col := range schema.Columns {
		header = append(header, a.catalog.FieldLabel(a.current, col.Name))
	}
	fmt.Fprintln(a.out, strings.Join(header, "\t"))

	for i, row := range t.Rows() {
		cells := make([]string, 0, len(schema.Columns)+1)
		marker := strconv.Itoa(i)
		if row.State != models.RowUnchanged {
			marker += " *"
		}
		cells = append(cells, marker)
		for _, col := range schema.Columns {
			cells = append(cells, formatCell(row.Get(col.Name)))
		}
		fmt.Fprintln(a.out, strings.Join(cells, "\t"))
	}
	return nil
}

// cmdAdd walks the non-generated columns one prompt at a time, previews the
// next key when the table has a generated identity, and inserts.
func (a *App) cmdAdd(ctx context.Context) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	t, err := a.engine.Load(ctx, a.current)
	if err != nil {
		return err
	}
	schema := t.Schema()

	if identity, err := schema.IdentityColumn(); err == nil && identity.Generated {
		if next, err := a.engine.NextKeyPreview(ctx, a.current); err == nil {
			fmt.Fprintf(a.out, "%s will be assigned automatically (next: %d)\n",
				a.catalog.FieldLabel(a.current, identity.Name), next)
		}
	}

	values := make(map[string]string, len(schema.Columns))
	for _, col := range schema.Columns {
		if col.Generated {
			continue
		}
		label := a.catalog.FieldLabel(a.current, col.Name)
		if hint := a.catalog.FieldHint(a.current, col.Name); hint != "" {
			label += " (" + hint + ")"
		}
		if col.Nullable {
			label += " [optional]"
		}
		v, err := a.reader.ReadLine(label + ": ")
		if err != nil {
			return err
		}
		values[col.Name] = v
	}

	row, err := a.engine.Add(ctx, a.current, values)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Row added: %s\n", rowSummary(schema, row))
	return nil
}

func (a *App) cmdSet(args []string) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	if len(args) < 3 {
		return fmt.Errorf("usage: set <row> <column> <value>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("row must be a number")
	}
	value := strings.Join(args[2:], " ")
	if err := a.engine.SetValue(a.current, index, args[1], value); err != nil {
		return err
	}
	fmt.Fprintln(a.out, `Staged. Run "save" to write it back.`)
	return nil
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: del <row>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("row must be a number")
	}

	confirm, err := a.reader.ReadLine("Delete row " + args[0] + "? [y/N]: ")
	if err != nil {
		return err
	}
	if !strings.EqualFold(confirm, "y") {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	if err := a.engine.Delete(ctx, a.current, index); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Row deleted.")
	return nil
}

func (a *App) cmdSave(ctx context.Context) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	n, err := a.engine.SaveChanges(ctx, a.current)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(a.out, "Nothing to save.")
	} else {
		fmt.Fprintf(a.out, "Saved %d row(s).\n", n)
	}
	return nil
}

func (a *App) cmdRefresh(ctx context.Context) error {
	if err := a.requireOpen(); err != nil {
		return err
	}
	if _, err := a.engine.Refresh(ctx, a.current); err != nil {
		return err
	}
	return a.cmdShow(ctx)
}

func (a *App) cmdExport(ctx context.Context, args []string, all bool) error {
	var names []string
	if all {
		listed, err := a.engine.Tables(ctx)
		if err != nil {
			return err
		}
		names = listed
	} else {
		if err := a.requireOpen(); err != nil {
			return err
		}
		names = []string{a.current}
	}

	tables := make([]export.TableData, 0, len(names))
	for _, name := range names {
		t, err := a.engine.Load(ctx, name)
		if err != nil {
			return err
		}
		tables = append(tables, export.TableData{
			Name:   name,
			Title:  a.catalog.TableName(name),
			Schema: t.Schema(),
			Rows:   t.Rows(),
		})
	}

	var path string
	if len(args) > 0 {
		path = args[0]
	}

	// The filename extension picks the format; CSV has no sheets, so it
	// carries exactly one table
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if all || len(tables) != 1 {
			return fmt.Errorf("CSV holds a single table, use: export <file>.csv with a table open")
		}
		if err := export.WriteCSV(path, tables[0]); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %s to %s\n", tables[0].Name, path)
		return nil
	}

	if path == "" {
		path = export.DefaultFilename("dbadmin", "xlsx")
	}
	if err := export.WriteXLSX(path, tables); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d table(s) to %s\n", len(tables), path)
	return nil
}

func (a *App) printError(err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		labels := make([]string, len(verr.MissingColumns))
		for i, col := range verr.MissingColumns {
			labels[i] = a.catalog.FieldLabel(verr.Table, col)
		}
		fmt.Fprintf(a.out, "Fill in the required fields: %s\n", strings.Join(labels, ", "))
	case errors.Is(err, models.ErrNotFound):
		fmt.Fprintln(a.out, "The row no longer exists. Run \"refresh\" to reload the table.")
	case errors.Is(err, models.ErrConnectivity):
		fmt.Fprintln(a.out, "Connection problem: "+err.Error())
	default:
		fmt.Fprintln(a.out, "Error: "+err.Error())
	}
}

func rowSummary(schema *models.TableSchema, row *models.RowSnapshot) string {
	if identity, err := schema.IdentityColumn(); err == nil {
		if v := row.Get(identity.Name); v != nil {
			return fmt.Sprintf("%s = %v", identity.Name, v)
		}
	}
	return "ok"
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("0x%x", b)
	}
	return fmt.Sprintf("%v", v)
}
