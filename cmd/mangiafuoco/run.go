package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mangiafuoco/pkg/chat"
	"github.com/go-go-golems/mangiafuoco/pkg/events"
	"github.com/go-go-golems/mangiafuoco/pkg/models"
	"github.com/go-go-golems/mangiafuoco/pkg/render"
	"github.com/go-go-golems/mangiafuoco/pkg/workflow"
)

const mapPrompt = `{{.task}}

Document "{{.dataSource.Name}}":

{{index .dataSource.Metadata "content"}}`

const singlePassPrompt = `{{.task}}
{{range dataSources}}
Document "{{.Name}}":

{{index .Metadata "content"}}
{{end}}`

func newRunCommand() *cobra.Command {
	var (
		model       string
		aliasFile   string
		catalogFile string
		echo        bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run PROMPT FILE...",
		Short: "Map a prompt over files and reduce the answers into one",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]
			files := args[1:]

			resolver := models.NewResolver(nil)
			if aliasFile != "" {
				resolver = models.NewResolverFromFile(aliasFile)
			}
			resolution := resolver.ResolveAlias(model)
			if resolution.WasAlias {
				log.Info().Str("alias", model).Str("model", resolution.ResolvedID).Msg("resolved model alias")
			}

			var completer chat.Completer
			if echo {
				completer = &chat.EchoCompleter{}
			} else {
				c, err := chat.NewOpenAICompleter(viper.GetString("openai-api-key"), resolution.ResolvedID)
				if err != nil {
					return err
				}
				completer = c
			}

			sources := make([]chat.DataSource, 0, len(files))
			contents := make([]string, 0, len(files)+1)
			contents = append(contents, prompt)
			for _, f := range files {
				content, err := os.ReadFile(f)
				if err != nil {
					return errors.Wrapf(err, "could not read %s", f)
				}
				sources = append(sources, chat.DataSource{
					ID:   f,
					Name: filepath.Base(f),
					Type: "file",
					Metadata: map[string]interface{}{
						"content": string(content),
					},
				})
				contents = append(contents, string(content))
			}

			ids := make([]string, 0, len(sources))
			for _, s := range sources {
				ids = append(ids, s.ID)
			}
			wf := workflow.DefaultWorkflow(ids)
			wf.Steps[0].Prompt = mapPrompt

			// with a catalog at hand, map/reduce is only worth it when the
			// documents overflow the model's context window
			if catalogFile != "" {
				fetcher := &models.FileCatalogFetcher{Path: catalogFile}
				catalog, err := fetcher.FetchCatalog(cmd.Context(), "")
				if err != nil {
					return err
				}
				desc, ok := catalog.Models[resolution.ResolvedID]
				if ok && models.FitsContext(desc, strings.Join(contents, "\n\n")) {
					log.Info().Str("model", resolution.ResolvedID).Msg("documents fit the model context, answering in a single pass")
					wf = &workflow.Workflow{
						ResultKey: "answer",
						Steps: []workflow.Step{{
							Kind:     workflow.StepKindPlain,
							Prompt:   singlePassPrompt,
							OutputTo: "answer",
						}},
					}
				}
			}

			router, err := events.NewEventRouter()
			if err != nil {
				return err
			}
			defer func() {
				if err := router.Close(); err != nil {
					log.Warn().Err(err).Msg("could not close event router")
				}
			}()
			router.AddHandler("printer", "chat", events.PrinterFunc(cmd.OutOrStdout()))

			pm := events.NewPublisherManager()
			pm.SubscribePublisher("chat", router.Publisher)

			renderer := render.NewEngine(nil, render.WithPublisherManager(pm))
			executor := workflow.NewExecutor(renderer, completer,
				workflow.WithPublisherManager(pm),
				workflow.WithMaxConcurrency(concurrency),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			eg, egCtx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return router.Run(egCtx)
			})
			eg.Go(func() error {
				defer cancel()
				<-router.Running()

				answer, err := executor.Run(egCtx, &workflow.RunRequest{
					Workflow: wf,
					Body: &chat.Body{
						Model:       resolution.ResolvedID,
						Messages:    []chat.Message{{Role: "user", Content: prompt}},
						DataSources: sources,
					},
					Helpers: &render.StaticHelpers{Current: sources},
				})
				if err != nil {
					return err
				}
				log.Debug().Int("length", len(answer)).Msg("workflow finished")
				return nil
			})

			err = eg.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "gpt-4o-mini", "Model id or alias")
	cmd.Flags().StringVar(&aliasFile, "aliases", "", "Path to the model alias resource")
	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Path to a model catalog file, used to skip map/reduce when everything fits the context window")
	cmd.Flags().BoolVar(&echo, "echo", false, "Echo prompts instead of calling a model")
	cmd.Flags().IntVar(&concurrency, "concurrency", workflow.DefaultMaxConcurrency, "Max parallel model calls in a map step")

	return cmd
}
