package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/spf13/cobra"

	"roomscope/internal/app"
	"roomscope/internal/config"
	"roomscope/internal/domain/viewport"
	"roomscope/internal/service/cluster"
	"roomscope/internal/service/discovery"
)

var (
	boundsFlag string
	zoomFlag   float64
	backend    string
	verbose    bool
	importFile string
	withSchema bool
)

var rootCmd = &cobra.Command{
	Use:   "roomctl",
	Short: "Query and load location-anchored rooms",
	Long:  `One-shot viewport queries against the configured room search backend, plus bulk loading of rooms into the PostGIS or Redis backends.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetHandler(text.New(os.Stderr))
		if verbose {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Fetch a viewport and print its clusters and rooms as GeoJSON",
	RunE:  runFeatures,
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Fetch a viewport and print its rooms sorted by distance",
	RunE:  runRooms,
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load rooms from a GeoJSON FeatureCollection into the backend",
	RunE:  runImport,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [room-id...]",
	Short: "Remove rooms from the backend",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Search backend (http, postgres, redis); defaults to SEARCH_BACKEND")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	for _, cmd := range []*cobra.Command{featuresCmd, roomsCmd} {
		cmd.Flags().StringVar(&boundsFlag, "bounds", "", "Viewport bounds as west,south,east,north")
		cmd.Flags().Float64VarP(&zoomFlag, "zoom", "z", 12, "Map zoom level")
		_ = cmd.MarkFlagRequired("bounds")
	}

	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "GeoJSON file with Point features")
	importCmd.Flags().BoolVar(&withSchema, "schema", false, "Create the PostGIS schema before loading")
	_ = importCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(featuresCmd, roomsCmd, importCmd, deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if backend != "" {
		os.Setenv("SEARCH_BACKEND", backend)
	}
	return config.Load()
}

// fetchViewport runs one immediate fetch for the flags' viewport
func fetchViewport(ctx context.Context) (*discovery.Engine, viewport.Viewport, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, viewport.Viewport{}, nil, err
	}

	b, err := parseBounds(boundsFlag)
	if err != nil {
		return nil, viewport.Viewport{}, nil, err
	}
	v := viewport.Viewport{Bounds: b, Zoom: zoomFlag}

	searcher, closeSearcher, err := app.NewSearcher(ctx, cfg)
	if err != nil {
		return nil, viewport.Viewport{}, nil, err
	}

	engine := discovery.NewEngine("roomctl", searcher, app.EngineConfig(cfg), log.Log)
	cleanup := func() {
		engine.Close()
		closeSearcher()
	}

	if !engine.Controller().ShouldFetch(v, true, false) {
		cleanup()
		return nil, viewport.Viewport{}, nil, fmt.Errorf("viewport does not qualify for a fetch (world view or zoom below %.0f)", cfg.Discovery.MinFetchZoom)
	}

	engine.OnViewportChange(v, true, false)
	engine.Refetch(ctx)

	if status := engine.Status(); status.Error != "" {
		cleanup()
		return nil, viewport.Viewport{}, nil, fmt.Errorf("%s", status.Error)
	}

	return engine, v, cleanup, nil
}

func runFeatures(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	engine, v, cleanup, err := fetchViewport(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fc := cluster.ToFeatureCollection(engine.Features(v.Bounds, v.Zoom))
	return printJSON(fc)
}

func runRooms(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	engine, v, cleanup, err := fetchViewport(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status := engine.Status()
	return printJSON(map[string]interface{}{
		"rooms":           engine.VisibleRooms(v.Bounds),
		"totalInViewport": status.TotalInViewport,
		"isComplete":      status.IsComplete,
	})
}

func parseBounds(raw string) (viewport.Bounds, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return viewport.Bounds{}, fmt.Errorf("invalid bounds value %q", part)
		}
		values = append(values, v)
	}
	return viewport.FromSlice(values)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
