package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"askfolio/internal/config"
	"askfolio/internal/storage"
)

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index [file...]",
	Short: "Index documents or reindex all projects",
	Long: `Index local documents (PDF or plain text) into the vector store,
or, with no arguments, rebuild the index for every stored project.

Examples:
  askfolio index resume.pdf notes.txt
  askfolio index`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		svc := buildServices(cfg, store)
		ctx := cmd.Context()

		if len(args) > 0 {
			for _, path := range args {
				printStep("Indexing %s", path)
				n, err := svc.indexer.IndexDocument(ctx, path)
				if err != nil {
					printError("%s: %v", path, err)
					return err
				}
				printSuccess("%s: %d records", path, n)
			}
			return nil
		}

		projects, err := store.ListProjects(ctx, 1000, 0)
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		if len(projects) == 0 {
			printWarning("no projects to index")
			return nil
		}

		printStep("Reindexing %d projects", len(projects))
		total, err := svc.indexer.IndexAll(ctx, projects)
		if err != nil {
			return err
		}
		printSuccess("Indexed %d projects (%d records)", len(projects), total)
		return nil
	},
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the portfolio and print a cited answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		k, _ := cmd.Flags().GetInt("top")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/search", map[string]any{
			"query": query,
			"k":     k,
		})
		if err != nil {
			return err
		}

		var out struct {
			Results []struct {
				Rank    int     `json:"rank"`
				Score   float32 `json:"score"`
				Ref     struct {
					Title   string   `json:"title"`
					Tags    []string `json:"tags"`
					DemoURL string   `json:"demo_url"`
				} `json:"ref"`
				Snippet string `json:"snippet"`
			} `json:"results"`
			Answer struct {
				Text         string `json:"text"`
				CitedRanks   []int  `json:"cited_ranks"`
				UsedFallback bool   `json:"used_fallback"`
			} `json:"answer"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		for _, r := range out.Results {
			title := r.Ref.Title
			if len(r.Ref.Tags) > 0 {
				title += " (" + strings.Join(r.Ref.Tags, ", ") + ")"
			}
			fmt.Printf("  %s %s  %s\n", colorize(colorBold, fmt.Sprintf("%d.", r.Rank)), title, colorize(colorCyan, fmt.Sprintf("%.3f", r.Score)))
			snippet := r.Snippet
			if len([]rune(snippet)) > 120 {
				snippet = string([]rune(snippet)[:120]) + "..."
			}
			fmt.Printf("     %s\n", snippet)
		}

		fmt.Println()
		fmt.Println(out.Answer.Text)
		if out.Answer.UsedFallback {
			printWarning("answer produced by local summarizer (remote provider unavailable)")
		}
		return nil
	},
}

// --- projects ---

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage portfolio projects",
}

var projectsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if title == "" {
			return fmt.Errorf("--title is required")
		}
		id, _ := cmd.Flags().GetString("id")
		description, _ := cmd.Flags().GetString("description")
		tagsStr, _ := cmd.Flags().GetString("tags")
		demoURL, _ := cmd.Flags().GetString("demo")
		sourceURL, _ := cmd.Flags().GetString("source")
		reindex, _ := cmd.Flags().GetBool("index")

		var tags []string
		if tagsStr != "" {
			tags = strings.Split(tagsStr, ",")
			for i := range tags {
				tags[i] = strings.TrimSpace(tags[i])
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{
			"id":          id,
			"title":       title,
			"description": description,
			"tags":        tags,
			"demo_url":    demoURL,
			"source_url":  sourceURL,
		}
		resp, err := client.post(cmd.Context(), "/projects", req)
		if err != nil {
			return err
		}

		var saved struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &saved); err != nil {
			return err
		}
		printSuccess("Saved project %s", saved.ID)

		if reindex {
			printStep("Indexing project %s", saved.ID)
			resp, err := client.post(cmd.Context(), "/projects/"+saved.ID+"/index", nil)
			if err != nil {
				return err
			}
			var result struct {
				Records int `json:"records"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Indexed %d records", result.Records)
		}
		return nil
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects?limit=100")
		if err != nil {
			return err
		}

		var projects []struct {
			ID    string   `json:"id"`
			Title string   `json:"title"`
			Tags  []string `json:"tags"`
		}
		if err := decodeJSON(resp, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			printWarning("no projects stored")
			return nil
		}
		for _, p := range projects {
			line := p.Title
			if len(p.Tags) > 0 {
				line += " (" + strings.Join(p.Tags, ", ") + ")"
			}
			fmt.Printf("  %s  %s\n", colorize(colorBold, p.ID), line)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top", 0, "number of results (1-10, 0 = server default)")

	projectsAddCmd.Flags().String("id", "", "project ID (generated if empty)")
	projectsAddCmd.Flags().String("title", "", "project title")
	projectsAddCmd.Flags().String("description", "", "project description")
	projectsAddCmd.Flags().String("tags", "", "comma-separated tags")
	projectsAddCmd.Flags().String("demo", "", "demo URL")
	projectsAddCmd.Flags().String("source", "", "source URL")
	projectsAddCmd.Flags().Bool("index", false, "index the project after saving")
	projectsCmd.AddCommand(projectsAddCmd)
	projectsCmd.AddCommand(projectsListCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show askfolio system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
		if err != nil {
			printStatus("Server", "stopped")
		} else {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				printStatus("Server", "running on port %d", cfg.Server.Port)
			} else {
				printStatus("Server", "error (HTTP %d)", resp.StatusCode)
			}
		}

		if cfg.OpenAI.APIKey == "" {
			printStatus("Provider", "not configured (local fallbacks only)")
		} else {
			printStatus("Provider", "configured")
		}
		printStatus("Embed model", "%s", cfg.OpenAI.EmbedModel)
		printStatus("Chat model", "%s", cfg.OpenAI.ChatModel)
		printStatus("Dimensions", "%d", cfg.OpenAI.Dimensions)

		store, err := storage.Open(cfg.Storage.DataDir)
		if err == nil {
			defer store.Close()
			ctx := cmd.Context()
			if n, err := store.CountProjects(ctx); err == nil {
				printStatus("Projects", "%d", n)
			}
			if n, err := store.CountRecords(ctx); err == nil {
				printStatus("Index records", "%d", n)
			}
		}

		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		return nil
	},
}
