package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the enrolled gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Long: `List enrolled identities. --search matches names ignoring case and diacritics.

Examples:
  face-attendance gallery list --search novak`,
	RunE: runGalleryList,
}

var galleryCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every linked embedding loads and matches the active generator",
	RunE:  runGalleryCheck,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryCheckCmd)

	galleryListCmd.Flags().String("search", "", "Filter by name")
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if err := initDatabase(config.Load()); err != nil {
		return err
	}
	reader, err := database.GetIdentityReader(ctx)
	if err != nil {
		return err
	}

	identities, err := reader.ListIdentities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}

	search := mustGetString(cmd, "search")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tGENERATOR\tENROLLED")
	fmt.Fprintln(w, "--\t----\t---------\t--------")

	shown := 0
	for _, i := range identities {
		if !facematch.MatchesName(i.Name, search) {
			continue
		}
		generator := i.Generator
		if !i.HasEmbedding() {
			generator = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", i.EmployeeID, i.Name, generator, i.CreatedAt.Format("2006-01-02"))
		shown++
	}
	w.Flush()

	fmt.Printf("\nTotal: %d identities\n", shown)
	return nil
}

// checkProblem is one gallery entry that cannot take part in matching.
type checkProblem struct {
	id     string
	reason string
}

func runGalleryCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	p, err := newPipeline(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer p.Close()

	identities, err := p.directory.ListIdentitiesWithEmbedding(ctx)
	if err != nil {
		return fmt.Errorf("failed to list identities: %w", err)
	}
	if len(identities) == 0 {
		fmt.Println("No linked embeddings found.")
		return nil
	}

	active := p.service.GeneratorID()
	bar := progressbar.NewOptions(len(identities),
		progressbar.OptionSetDescription("Checking gallery"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("embeddings"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var problems []checkProblem
	for _, identity := range identities {
		if problem, bad := checkEntry(ctx, p.store, identity, active); bad {
			problems = append(problems, problem)
		}
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	if len(problems) == 0 {
		fmt.Printf("All %d embeddings are usable with %s\n", len(identities), active)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROBLEM")
	fmt.Fprintln(w, "--\t-------")
	for _, pr := range problems {
		fmt.Fprintf(w, "%s\t%s\n", pr.id, pr.reason)
	}
	w.Flush()

	fmt.Printf("\n%d of %d embeddings cannot be matched with %s; re-enroll them\n", len(problems), len(identities), active)
	return nil
}

// checkEntry loads one embedding and compares it with the active generator.
func checkEntry(ctx context.Context, store gallery.Store, identity database.Identity, active string) (checkProblem, bool) {
	emb, err := store.Load(ctx, identity.EmbeddingRef)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return checkProblem{identity.EmployeeID, "embedding file missing"}, true
	case errors.Is(err, gallery.ErrCorrupt):
		return checkProblem{identity.EmployeeID, "embedding corrupt"}, true
	case err != nil:
		slog.Debug("loading embedding failed", "employee_id", identity.EmployeeID, "error", err)
		return checkProblem{identity.EmployeeID, "embedding unreadable: " + err.Error()}, true
	}
	if emb.Generator != active {
		return checkProblem{identity.EmployeeID, fmt.Sprintf("generator %s, active is %s", emb.Generator, active)}, true
	}
	return checkProblem{}, false
}
