package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-oss/photoidx/internal/config"
	"github.com/aman-oss/photoidx/internal/filter"
	"github.com/aman-oss/photoidx/internal/search"
	"github.com/aman-oss/photoidx/pkg/photoindex"
)

func newSearchCmd() *cobra.Command {
	var (
		root string
		topK int
		like string

		filterQuery   string
		favoritesOnly bool
		tags          []string
		person        string
		camera        string
		isoMin        float64
		isoMax        float64
		sharpOnly     bool
		excludeUnder  bool
		excludeOver   bool
		hasText       bool
		place         string
		dateFrom      float64
		dateTo        float64
		useEXIFDate   bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search an index by text query, similarity (--like), or filters alone",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			f := filters(cmd, favoritesOnly, tags, person, camera, isoMin, isoMax, sharpOnly, excludeUnder, excludeOver, hasText, place, dateFrom, dateTo, useEXIFDate)
			if query == "" && like == "" && filterQuery == "" && !hasAnyFilter(f) {
				return fmt.Errorf("provide a query, --like path, --filter, or at least one filter flag")
			}

			r := projectRoot(nil)
			if root != "" {
				r = root
			}
			cfg, err := config.Load(r)
			if err != nil {
				return err
			}

			embedder, err := resolveEmbedder(cfg)
			if err != nil {
				return err
			}

			store, err := photoindex.Open(r, embedder)
			if err != nil {
				return err
			}

			opts := search.Options{FusionWeight: float32(cfg.Search.ImageWeight)}
			if filterQuery != "" || hasAnyFilter(f) {
				filtered, err := store.FilterPaths(filterQuery, f, store.FilterEvalContext())
				if err != nil {
					return err
				}
				opts.Subset = store.RowsForPaths(filtered)
			}

			var results []search.Result
			switch {
			case like != "":
				results, err = store.SearchLike(cmd.Context(), like, topK, opts)
			case query != "":
				results, err = store.Search(cmd.Context(), query, topK, opts)
			default:
				results, err = store.Search(cmd.Context(), "", topK, opts) // mode 5: filters only
			}
			if err != nil {
				return err
			}

			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%.4f\t%s\n", r.Score, r.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "index root (defaults to the current directory)")
	cmd.Flags().IntVar(&topK, "top-k", 20, "maximum results to return")
	cmd.Flags().StringVar(&like, "like", "", "search by similarity to an already-indexed photo")

	cmd.Flags().StringVar(&filterQuery, "filter", "", "RPN boolean query over tags/exif/text fields (spec §4.7)")
	cmd.Flags().BoolVar(&favoritesOnly, "favorites-only", false, "keep only favorited photos")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "keep only photos with this tag (repeatable)")
	cmd.Flags().StringVar(&person, "person", "", "keep only photos tagged with this person")
	cmd.Flags().StringVar(&camera, "camera", "", "keep only photos from this camera (substring match)")
	cmd.Flags().Float64Var(&isoMin, "iso-min", 0, "minimum EXIF ISO")
	cmd.Flags().Float64Var(&isoMax, "iso-max", 0, "maximum EXIF ISO")
	cmd.Flags().BoolVar(&sharpOnly, "sharp-only", false, "keep only photos above the sharpness threshold")
	cmd.Flags().BoolVar(&excludeUnder, "exclude-under", false, "drop underexposed photos")
	cmd.Flags().BoolVar(&excludeOver, "exclude-over", false, "drop overexposed photos")
	cmd.Flags().BoolVar(&hasText, "has-text", false, "keep only photos with recognized OCR text")
	cmd.Flags().StringVar(&place, "place", "", "keep only photos reverse-geocoded to this place (substring match)")
	cmd.Flags().Float64Var(&dateFrom, "date-from", 0, "keep only photos on/after this unix timestamp")
	cmd.Flags().Float64Var(&dateTo, "date-to", 0, "keep only photos on/before this unix timestamp")
	cmd.Flags().BoolVar(&useEXIFDate, "use-exif-date", false, "use EXIF capture date instead of file mtime for --date-from/--date-to")

	return cmd
}

// filters builds a filter.Filters from search's structured flags, treating
// an unset numeric flag as "unconstrained" (spec §4.7: zero value means
// unconstrained, so bounds are only wired in when the user actually passed
// the flag).
func filters(cmd *cobra.Command, favoritesOnly bool, tags []string, person, camera string, isoMin, isoMax float64, sharpOnly, excludeUnder, excludeOver, hasText bool, place string, dateFrom, dateTo float64, useEXIFDate bool) filter.Filters {
	f := filter.Filters{
		FavoritesOnly: favoritesOnly,
		Tags:          tags,
		Person:        person,
		Camera:        camera,
		SharpOnly:     sharpOnly,
		ExcludeUnder:  excludeUnder,
		ExcludeOver:   excludeOver,
		HasText:       hasText,
		Place:         place,
		UseEXIFDate:   useEXIFDate,
	}
	if cmd.Flags().Changed("iso-min") {
		f.ISOMin = &isoMin
	}
	if cmd.Flags().Changed("iso-max") {
		f.ISOMax = &isoMax
	}
	if cmd.Flags().Changed("date-from") {
		f.DateFrom = &dateFrom
	}
	if cmd.Flags().Changed("date-to") {
		f.DateTo = &dateTo
	}
	return f
}

func hasAnyFilter(f filter.Filters) bool {
	return f.FavoritesOnly || len(f.Tags) > 0 || f.Person != "" || f.Camera != "" ||
		f.ISOMin != nil || f.ISOMax != nil || f.SharpOnly || f.ExcludeUnder || f.ExcludeOver ||
		f.HasText || f.Place != "" || f.DateFrom != nil || f.DateTo != nil
}
