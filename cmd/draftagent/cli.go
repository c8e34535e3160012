package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/tbxark/draftagent/agent"
	"github.com/tbxark/draftagent/config"
	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/mcpserver"
	"github.com/tbxark/draftagent/render"
	"github.com/tbxark/draftagent/types"
)

// PatchInput is the file format read by the patch command.
type PatchInput struct {
	Document string             `json:"document" jsonschema:"required,description=Document text to patch"`
	Values   []types.NamedValue `json:"values" jsonschema:"required,description=Values and the occurrences they replace"`
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(in io.Reader, out io.Writer) *cli.App {
	app := &cli.App{
		Name:    "draftagent",
		Usage:   "Draft documents through conversation",
		Version: Version,
		Reader:  in,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to a YAML config file", EnvVars: []string{"DRAFTAGENT_CONFIG"}},
			&cli.StringFlag{Name: "log-level", Usage: "Override log.level (debug|info|warn|error)"},
		},
		Commands: []*cli.Command{
			chatCmd(),
			patchCmd(),
			serveCmd(),
			schemaCmd(),
			typesCmd(),
			previewCmd(),
			sessionsCmd(),
			importLibraryCmd(),
		},
	}
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// withRuntime loads the config, builds the runtime and closes it after fn returns.
func withRuntime(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		if level := c.String("log-level"); level != "" {
			cfg.Log.Level = level
		}
		rt, err := newRuntime(c.Context, cfg)
		if err != nil {
			return outputError(err)
		}
		defer func() {
			_ = rt.Close()
		}()
		return fn(c, rt)
	}
}

func chatCmd() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Draft a document interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Resume or name a session"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			ctx := c.Context
			out := c.App.Writer
			id := c.String("session")
			if id == "" {
				s, err := rt.controller.NewSession(ctx)
				if err != nil {
					return outputError(err)
				}
				id = s.ID
			}
			runner := adk.NewRunner(ctx, adk.RunnerConfig{
				Agent: agent.NewDraftAgent("DraftAgent", "Drafts documents by asking for the details it needs", rt.controller),
			})

			fmt.Fprintf(out, "Session %s. Describe the document you need.\n", id)
			scanner := bufio.NewScanner(c.App.Reader)
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				iter := runner.Run(agent.WithSessionID(ctx, id), []adk.Message{schema.UserMessage(line)})
				for {
					event, ok := iter.Next()
					if !ok {
						break
					}
					if event.Err != nil {
						fmt.Fprintf(out, "error: %v\n", event.Err)
						continue
					}
					if event.Output == nil || event.Output.MessageOutput == nil {
						continue
					}
					msg, err := event.Output.MessageOutput.GetMessage()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "\n%s\n\n", msg.Content)
				}

				s, err := rt.controller.Session(ctx, id)
				if err != nil {
					return outputError(err)
				}
				if s.Status.Terminal() {
					next, err := rt.controller.NewSession(ctx)
					if err != nil {
						return outputError(err)
					}
					fmt.Fprintf(out, "Session %s is %s. Started session %s.\n", id, s.Status, next.ID)
					id = next.ID
				}
			}
			return scanner.Err()
		}),
	}
}

func patchCmd() *cli.Command {
	return &cli.Command{
		Name:  "patch",
		Usage: "Apply named values to a document (reads a JSON PatchInput from --file or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to the JSON input"},
			&cli.BoolFlag{Name: "document-only", Usage: "Print only the updated document"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			data, err := readInput(c, c.String("file"))
			if err != nil {
				return outputError(err)
			}
			var input PatchInput
			if err := sonic.Unmarshal(data, &input); err != nil {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("parse patch input: %v", err)))
			}
			result := rt.controller.PatchDocument(input.Document, input.Values)
			for _, u := range result.UnresolvedOccurrences {
				rt.logger.Warn("Occurrence unresolved", "value", u.ValueID, "text", u.Occurrence.Text, "reason", u.Reason)
			}
			if c.Bool("document-only") {
				_, err := fmt.Fprintln(c.App.Writer, result.UpdatedDocument)
				return err
			}
			return outputJSON(c.App.Writer, result)
		}),
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the drafting tools over MCP stdio",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			rt.logger.Info("Serving MCP tools", "tools", strings.Join(mcpserver.ToolNames(), ","))
			return mcpserver.Run(rt.controller, Version)
		}),
	}
}

func schemaCmd() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the patch command input",
		Action: func(c *cli.Context) error {
			s := jsonschema.Reflect(&PatchInput{})
			s.Title = "Patch input"
			s.Description = "A document and the named values to write into it."
			return outputJSON(c.App.Writer, s)
		},
	}
}

func typesCmd() *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "List supported document types",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			table := tablewriter.NewTable(c.App.Writer)
			table.Header("Type", "Title", "Required", "Description")
			for _, def := range rt.registry.Definitions() {
				required := 0
				for _, p := range def.Parameters {
					if p.Required {
						required++
					}
				}
				_ = table.Append(def.Type, def.Title, strconv.Itoa(required), def.Description)
			}
			return table.Render()
		}),
	}
}

func previewCmd() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Render a generated document as an HTML page",
		ArgsUsage: "[markdown file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Preview the document of a stored session"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Page title"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			title := c.String("title")
			if id := c.String("session"); id != "" {
				s, err := rt.controller.Session(c.Context, id)
				if err != nil {
					return outputError(err)
				}
				if s.GeneratedDocument == nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("session %s has no generated document", id)))
				}
				if title == "" {
					if def, ok := rt.registry.Definition(s.DocumentType); ok {
						title = def.Title
					}
				}
				return render.Page(c.App.Writer, title, *s.GeneratedDocument, s.FieldMarkers)
			}
			data, err := readInput(c, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return render.Page(c.App.Writer, title, string(data), nil)
		}),
	}
}

func sessionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List stored sessions (sqlite store only)",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum number of sessions"},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if rt.sessions == nil {
				return outputError(errors.NewInvalidRequest("sessions requires store.driver sqlite"))
			}
			list, err := rt.sessions.List(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			table := tablewriter.NewTable(c.App.Writer)
			table.Header("ID", "Status", "Updated")
			for _, s := range list {
				_ = table.Append(s.ID, string(s.Status), s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return table.Render()
		}),
	}
}

func importLibraryCmd() *cli.Command {
	return &cli.Command{
		Name:  "import-library",
		Usage: "Copy the templates and clauses of all document types into the reference library",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			if rt.library == nil {
				return outputError(errors.NewInvalidRequest("library.path is not configured"))
			}
			defs := rt.registry.Definitions()
			if err := rt.library.Import(c.Context, defs); err != nil {
				return outputError(errors.NewInternal(err))
			}
			_, err := fmt.Fprintf(c.App.Writer, "Imported reference material for %d document types.\n", len(defs))
			return err
		}),
	}
}

// readInput reads path, or the app's stdin when path is empty or "-".
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return nil, errors.NewInvalidRequest("input must be given as a file or piped via stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("read %s: %v", path, err))
	}
	return data, nil
}

func outputJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// outputError formats err for the CLI.
func outputError(err error) error {
	if dErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", dErr.Code, dErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
