package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-moments/internal/config"
	"github.com/kozaktomas/photo-moments/internal/constants"
	"github.com/kozaktomas/photo-moments/internal/database"
	"github.com/kozaktomas/photo-moments/internal/geo"
)

var momentsCmd = &cobra.Command{
	Use:   "moments",
	Short: "Inspect moments",
}

var momentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List moments, newest first",
	Args:  cobra.NoArgs,
	RunE:  runMomentsList,
}

var momentsShowCmd = &cobra.Command{
	Use:   "show [moment-id]",
	Short: "Show the places and photos of a moment",
	Args:  cobra.ExactArgs(1),
	RunE:  runMomentsShow,
}

func init() {
	rootCmd.AddCommand(momentsCmd)
	momentsCmd.AddCommand(momentsListCmd)
	momentsCmd.AddCommand(momentsShowCmd)

	momentsListCmd.Flags().Int("limit", constants.DefaultHandlerPageSize, "Maximum number of moments to list")
	momentsListCmd.Flags().Int("offset", 0, "Number of moments to skip")
	momentsListCmd.Flags().Bool("json", false, "Output as JSON")
	momentsShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// momentSpan formats the capture time range of a moment.
func momentSpan(start, end *time.Time) string {
	if start == nil || end == nil {
		return "-"
	}
	if start.Equal(*end) {
		return start.Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s (%s)", start.Format("2006-01-02 15:04"), formatDuration(end.Sub(*start)))
}

// placeLabel is the best short name of a located cluster.
func placeLabel(l *database.LocatedCluster) string {
	switch {
	case l.Place.Name != "" && l.Place.Locality != "":
		return l.Place.Name + ", " + l.Place.Locality
	case l.Place.Name != "":
		return l.Place.Name
	case l.Place.Locality != "":
		return l.Place.Locality
	case l.Place.DisplayName != "":
		return l.Place.DisplayName
	}
	return "(" + string(l.LocationStatus) + ")"
}

type momentListEntry struct {
	ID            string     `json:"id"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	AssetCount    int        `json:"asset_count"`
	LocatedStatus string     `json:"located_status"`
}

func runMomentsList(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	offset := mustGetInt(cmd, "offset")
	jsonOutput := mustGetBool(cmd, "json")

	ctx := cmd.Context()
	store, err := openStore(ctx, config.Load())
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		summaries []database.MacroClusterSummary
		total     int
	)
	err = store.ReadTx(ctx, func(tx database.Reader) error {
		var err error
		if summaries, err = tx.ListMacroClusters(ctx, limit, offset); err != nil {
			return err
		}
		counts, err := tx.CountAssetsByStatus(ctx)
		for _, n := range counts {
			total += n
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list moments: %w", err)
	}

	if jsonOutput {
		entries := make([]momentListEntry, len(summaries))
		for i, s := range summaries {
			entries[i] = momentListEntry{
				ID:            s.ID,
				Start:         s.Start,
				End:           s.End,
				AssetCount:    s.MemberCount,
				LocatedStatus: string(s.LocatedClusterStatus),
			}
		}
		return outputJSON(entries)
	}

	if len(summaries) == 0 {
		fmt.Println("No moments found. Run 'photo-moments sync' and 'photo-moments cluster' first.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Taken", "When", "Photos", "Places"})
	table.SetBorder(false)
	for _, s := range summaries {
		when := "-"
		if s.Start != nil {
			when = humanize.Time(*s.Start)
		}
		table.Append([]string{
			s.ID,
			momentSpan(s.Start, s.End),
			when,
			strconv.Itoa(s.MemberCount),
			string(s.LocatedClusterStatus),
		})
	}
	table.Render()
	fmt.Printf("\nShowing %d moments (offset %d) over %s assets\n", len(summaries), offset, humanize.Comma(int64(total)))
	return nil
}

type momentDetail struct {
	cluster *database.MacroCluster
	members []*database.AssetRecord
	located []*database.LocatedCluster
}

func loadMoment(ctx context.Context, store database.Store, id string) (*momentDetail, error) {
	d := &momentDetail{}
	err := store.ReadTx(ctx, func(tx database.Reader) error {
		var err error
		if d.cluster, err = tx.GetMacroCluster(ctx, id); err != nil {
			return err
		}
		if d.members, err = tx.AssetsByMacroCluster(ctx, id); err != nil {
			return err
		}
		d.located, err = tx.LocatedClustersByMacroCluster(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func runMomentsShow(cmd *cobra.Command, args []string) error {
	id := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	ctx := cmd.Context()
	cfg := config.Load()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := loadMoment(ctx, store, id)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("moment %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load moment: %w", err)
	}

	byPlace := make(map[string][]*database.AssetRecord)
	for _, a := range d.members {
		byPlace[a.LocatedClusterID] = append(byPlace[a.LocatedClusterID], a)
	}

	if jsonOutput {
		type place struct {
			ID             string          `json:"id"`
			Location       *geo.Coordinate `json:"location,omitempty"`
			Place          database.Place  `json:"place"`
			LocationStatus string          `json:"location_status"`
			AssetIDs       []string        `json:"asset_ids"`
		}
		out := struct {
			ID            string   `json:"id"`
			LocatedStatus string   `json:"located_status"`
			Places        []place  `json:"places"`
			Unplaced      []string `json:"unplaced"`
		}{ID: d.cluster.ID, LocatedStatus: string(d.cluster.LocatedClusterStatus), Places: []place{}, Unplaced: []string{}}
		for _, l := range d.located {
			p := place{
				ID:             l.ID,
				Location:       l.Location,
				Place:          l.Place,
				LocationStatus: string(l.LocationStatus),
				AssetIDs:       []string{},
			}
			for _, a := range byPlace[l.ID] {
				p.AssetIDs = append(p.AssetIDs, a.ID)
			}
			out.Places = append(out.Places, p)
		}
		for _, a := range byPlace[""] {
			out.Unplaced = append(out.Unplaced, a.ID)
		}
		return outputJSON(out)
	}

	var start, end *time.Time
	for _, a := range d.members {
		if a.TakenAt == nil {
			continue
		}
		if start == nil || a.TakenAt.Before(*start) {
			start = a.TakenAt
		}
		if end == nil || a.TakenAt.After(*end) {
			end = a.TakenAt
		}
	}

	fmt.Printf("Moment %s\n", d.cluster.ID)
	fmt.Printf("  Taken:  %s\n", momentSpan(start, end))
	fmt.Printf("  Photos: %d\n", len(d.members))
	fmt.Printf("  Places: %d (%s)\n", len(d.located), d.cluster.LocatedClusterStatus)

	sort.Slice(d.located, func(i, j int) bool {
		return len(byPlace[d.located[i].ID]) > len(byPlace[d.located[j].ID])
	})
	for _, l := range d.located {
		fmt.Printf("\n%s - %d photos\n", placeLabel(l), len(byPlace[l.ID]))
		if l.Location != nil {
			fmt.Printf("  at %.5f, %.5f\n", l.Location.Latitude, l.Location.Longitude)
		}
		printMomentPhotos(&cfg.PhotoPrism, byPlace[l.ID])
	}
	if unplaced := byPlace[""]; len(unplaced) > 0 {
		fmt.Printf("\nWithout place - %d photos\n", len(unplaced))
		printMomentPhotos(&cfg.PhotoPrism, unplaced)
	}
	return nil
}

func printMomentPhotos(ppCfg *config.PhotoPrismConfig, assets []*database.AssetRecord) {
	for _, a := range assets {
		label := a.ID
		if link := ppCfg.PhotoURL(a.ID); link != "" {
			label = link
		}
		taken := "-"
		if a.TakenAt != nil {
			taken = a.TakenAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("    %s  %s  %s\n", label, taken, a.Status)
	}
}
