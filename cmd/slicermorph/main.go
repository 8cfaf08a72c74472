package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"gonum.org/v1/gonum/mat"

	"slicermorph/internal/logger"
	"slicermorph/pkg/analysis"
	"slicermorph/pkg/capture"
	"slicermorph/pkg/config"
	"slicermorph/pkg/export"
	"slicermorph/pkg/landmarks"
	"slicermorph/pkg/shape"
	"slicermorph/pkg/stl"
	"slicermorph/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "slicermorph.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	inputDir := flag.String("input", "", "Directory searched recursively for landmark files")
	outputDir := flag.String("output", "", "Parent directory for results (overrides config)")
	excludeList := flag.String("exclude", "", "Comma separated 1-based landmarks to exclude, e.g. 3,7")
	skipScaling := flag.Bool("skip-scaling", false, "Align without normalising centroid size")
	pcList := flag.String("pc", "", "Shape prediction as PC:scale pairs, e.g. 1:0.5,2:-0.2")
	referencePath := flag.String("reference", "", "Reference landmark file used as the base of lollipop and warp plots")
	modelPath := flag.String("model", "", "STL model warped along the -pc prediction")
	lollipopList := flag.String("lollipop", "", "Up to 3 components for lollipop plots, 0 to skip a slot")
	scatterList := flag.String("scatter", "1,2", "Two components for the PCA scatter table")
	distribution := flag.String("distribution", "", "Landmark distribution plot: cloud, sphere or ellipse")
	snapshot := flag.Bool("snapshot", false, "Write a high resolution PNG of the plots to the run folder")
	snapshotName := flag.String("snapshot-name", "", "Snapshot filename (overrides capture.filename in config)")
	resolution := flag.String("resolution", "", "Snapshot resolution WIDTHxHEIGHT (overrides config)")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.Directory = *outputDir
	}
	if *skipScaling {
		cfg.Analysis.SkipScaling = true
	}
	if *resolution != "" {
		w, h, err := parseResolution(*resolution)
		if err != nil {
			log.Fatalf("Invalid -resolution: %v", err)
		}
		cfg.Capture.Width, cfg.Capture.Height = w, h
	}

	exclude, err := landmarks.ParseExclusions(*excludeList)
	if err != nil {
		log.Fatalf("Invalid -exclude: %v", err)
	}
	selections, err := parseSelections(*pcList)
	if err != nil {
		log.Fatalf("Invalid -pc: %v", err)
	}
	lollipops, err := parseComponents(*lollipopList, visualization.LollipopSlots)
	if err != nil {
		log.Fatalf("Invalid -lollipop: %v", err)
	}
	scatter, err := parseComponents(*scatterList, 2)
	if err != nil || len(scatter) != 2 {
		log.Fatalf("Invalid -scatter: expected two components")
	}
	if *modelPath != "" && len(selections) == 0 {
		log.Fatalf("-model needs a -pc prediction to warp along")
	}

	level := logger.LogWarn
	if cfg.Output.Verbose {
		level = logger.LogInfo
	}
	lg := logger.New(level)

	fmt.Println("================================")
	fmt.Println("GENERALIZED PROCRUSTES ANALYSIS AND PCA OF 3D LANDMARKS")
	fmt.Println("================================")

	params := analysis.ParamsFromConfig(cfg, *inputDir, exclude)
	analyzer := analysis.NewAnalyzer(params, lg)
	progress := &stageProgress{}
	analyzer.SetProgressCallback(progress.update)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()
	outcome := <-analyzer.RunAsync(ctx)
	progress.finish()
	if outcome.Err != nil {
		log.Fatalf("Analysis failed in %s: %v", analysis.Stage(outcome.Err), outcome.Err)
	}
	res := outcome.Result
	printSummary(res, time.Since(startTime))

	// Reject component indices the model does not have before any plotting
	if err := shape.ValidateSelections(res.Model, selections); err != nil {
		log.Fatalf("Invalid -pc: %v", err)
	}
	for _, component := range append(lollipops, scatter...) {
		if component > res.Model.NumComponents() {
			log.Fatalf("Component %d requested, model has %d", component, res.Model.NumComponents())
		}
	}

	folder := res.OutputFolder
	if folder == "" {
		folder = cfg.Output.Directory
	}

	// Optional reference landmarks, with the same exclusions as the subjects
	var reference mat.Matrix
	if *referencePath != "" {
		ref, err := landmarks.ReadFile(*referencePath)
		if err != nil {
			log.Fatalf("Failed to read reference landmarks: %v", err)
		}
		if len(exclude) > 0 {
			if ref, err = landmarks.Exclude(ref, exclude); err != nil {
				log.Fatalf("Failed to apply exclusions to reference landmarks: %v", err)
			}
		}
		reference = ref
	} else if len(lollipops) > 0 || *distribution != "" {
		fmt.Println("No reference landmarks loaded, plotting at the mean landmark positions.")
	}
	base := reference
	if base == nil {
		base = res.RawMean()
	}

	scene := visualization.NewScene()
	opts := visualization.DefaultPlotOptions()
	opts.TubeRadius = cfg.Visualization.LollipopRadius
	opts.TubeSides = cfg.Visualization.TubeSides
	opts.SphereResolution = cfg.Visualization.SphereResolution
	plots := visualization.NewPlots(scene, opts)

	if err := buildPlots(plots, res, base, lollipops, scatter, *distribution, cfg.Visualization.GlyphScale); err != nil {
		log.Fatalf("Failed to build plots: %v", err)
	}

	writer, err := export.NewWriter(folder, lg)
	if err != nil {
		log.Fatalf("Failed to open output folder: %v", err)
	}
	if table, err := scene.Table(plots.ScatterTable); err == nil && len(table.Rows) > 0 {
		if err := writer.Table("pcScatter.csv", table.Columns, table.Rows); err != nil {
			log.Printf("Warning: Failed to save scatter table: %v", err)
		}
	}

	// Shape prediction and thin-plate-spline warp
	if len(selections) > 0 {
		target, err := res.Predict(base, selections)
		if err != nil {
			log.Fatalf("Shape prediction failed: %v", err)
		}
		if err := landmarks.WriteFile(writer.Path("predicted.fcsv"), target); err != nil {
			log.Fatalf("Failed to save predicted landmarks: %v", err)
		}
		tps, err := plots.WarpPlot(base, target)
		if err != nil {
			log.Fatalf("Failed to build warp: %v", err)
		}
		if *modelPath != "" {
			warpedPath, err := warpModel(scene, tps.TransformPoint, *modelPath, writer)
			if err != nil {
				log.Fatalf("Failed to warp model: %v", err)
			}
			fmt.Printf("Warped model saved to: %s\n", warpedPath)
		}
		fmt.Printf("Predicted landmarks saved to: %s\n", writer.Path("predicted.fcsv"))
	}

	if name := snapshotFilename(*snapshot, *snapshotName, cfg.Capture.Filename); name != "" {
		viewer := visualization.NewViewer(scene, 800, 600)
		viewer.ResetCamera([3]float64{0, 0, -1}, [3]float64{0, 1, 0})
		req := capture.Request{
			Directory: folder,
			Filename:  name,
			Width:     cfg.Capture.Width,
			Height:    cfg.Capture.Height,
		}
		if err := capture.NewCapturer(viewer, lg).Capture(req); err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		fmt.Printf("Snapshot saved to: %s\n", req.Path())
	}
}

func buildPlots(plots *visualization.Plots, res *analysis.Result, base mat.Matrix, lollipops, scatter []int, distribution string, glyphScale float64) error {
	for slot, component := range lollipops {
		if component == 0 {
			if err := plots.Lollipop(slot, base, nil); err != nil {
				return err
			}
			continue
		}
		endpoints, err := res.Lollipop(base, component)
		if err != nil {
			return err
		}
		if err := plots.Lollipop(slot, base, endpoints); err != nil {
			return err
		}
	}

	switch strings.ToLower(distribution) {
	case "":
	case "cloud":
		if err := plots.PointCloudPlot(res.Raw); err != nil {
			return err
		}
	case "sphere", "ellipse":
		variation, err := res.Variation()
		if err != nil {
			return err
		}
		if err := plots.DistributionGlyphs(base, variation, glyphScale, distribution == "ellipse"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown distribution plot %q", distribution)
	}

	if err := plots.DistanceTablePlot(res.IDs, res.Distances); err != nil {
		return err
	}
	if res.Model.NumComponents() >= 2 {
		proj, xTitle, yTitle, err := res.Scatter(scatter[0], scatter[1])
		if err != nil {
			return err
		}
		if err := plots.ScatterTablePlot(res.IDs, proj, xTitle, yTitle); err != nil {
			return err
		}
	}
	return nil
}

func warpModel(scene *visualization.Scene, fn func([3]float64) [3]float64, path string, writer *export.Writer) (string, error) {
	triangles, err := stl.LoadSTL(path)
	if err != nil {
		return "", err
	}
	warped := stl.Warp(triangles, fn)

	h := scene.AddModel("Warped Model")
	model, err := scene.Model(h)
	if err != nil {
		return "", err
	}
	model.Triangles = warped
	model.Color = color.RGBA{230, 230, 200, 255}
	model.Visible = true

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + "_warped.stl"
	out := writer.Path(name)
	return out, stl.SaveToSTL(out, warped)
}

// stageProgress shows one progress bar per pipeline stage
type stageProgress struct {
	stage analysis.StageName
	bar   *pb.ProgressBar
}

func (s *stageProgress) update(stage analysis.StageName, completed, total int, message string) {
	if stage != s.stage {
		s.finish()
		s.stage = stage
		s.bar = pb.StartNew(total)
		s.bar.Set("prefix", string(stage)+" ")
	}
	if total > 0 {
		s.bar.SetTotal(int64(total))
	}
	s.bar.SetCurrent(int64(completed))
}

func (s *stageProgress) finish() {
	if s.bar != nil {
		s.bar.Finish()
		s.bar = nil
	}
}

func printSummary(res *analysis.Result, elapsed time.Duration) {
	landmarkCount, _ := res.RawMean().Dims()
	fmt.Printf("\nAnalysis completed successfully in %.2f seconds!\n", elapsed.Seconds())
	fmt.Printf("Run ID: %s\n", res.RunID)
	fmt.Printf("Subjects: %d, landmarks: %d\n", res.NumSubjects(), landmarkCount)
	if res.Converged() {
		fmt.Printf("Alignment converged after %d iterations\n", res.Alignment.Iterations)
	} else {
		fmt.Printf("Warning: alignment stopped at the iteration cap (%d) without converging\n", res.Alignment.Iterations)
	}
	fmt.Printf("Closest sample to the mean: %s\n", res.ClosestSample())

	fmt.Println("\nVariance explained:")
	fmt.Println("===================")
	percent := res.Model.PercentVariance()
	for k := 0; k < len(percent) && k < 5; k++ {
		fmt.Printf("PC%d: %.2f%%\n", k+1, 100*percent[k])
	}
	if !res.Model.Sorted {
		fmt.Println("(components are in decomposition order, not sorted by variance)")
	}

	if res.OutputFolder != "" {
		fmt.Printf("\nResults saved to: %s\n", res.OutputFolder)
	}
}
