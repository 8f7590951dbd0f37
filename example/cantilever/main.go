package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/akmonengine/sponge"
	"github.com/akmonengine/sponge/actor"
	"github.com/akmonengine/sponge/config"
	"github.com/akmonengine/sponge/geom"
	"github.com/akmonengine/sponge/loader"
)

var (
	configFile   string
	preset       string
	documentFile string
	outFile      string
	steps        int
	length       int
	width        int
	youngs       float64
	density      float64
	tipLoad      float64
	samples      int
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899")).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffaa00"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cantilever",
		Short: "soft voxel lattice runner",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "run config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset run configuration")
	rootCmd.PersistentFlags().StringVar(&documentFile, "document", "", "lattice document path (yaml), replaces the built-in beam")
	rootCmd.PersistentFlags().IntVar(&length, "length", 10, "beam length in voxels")
	rootCmd.PersistentFlags().IntVar(&width, "width", 2, "beam width and height in voxels")
	rootCmd.PersistentFlags().Float64Var(&youngs, "youngs", 1e6, "Young's modulus (Pa)")
	rootCmd.PersistentFlags().Float64Var(&density, "density", 1e3, "density (kg/m³)")
	rootCmd.PersistentFlags().Float64Var(&tipLoad, "load", 0, "downward force on each tip voxel (N)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "step the lattice and plot the tip deflection",
		RunE:  runSimulation,
	}
	runCmd.Flags().IntVar(&steps, "steps", 0, "number of steps, overrides the config")
	runCmd.Flags().IntVar(&samples, "samples", 200, "points of the plotted trace")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "write the lattice as a document",
		RunE:  exportDocument,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "lattice.yaml", "output document path")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available run presets",
		Run: func(cmd *cobra.Command, args []string) {
			names := config.ListPresets()
			sort.Strings(names)
			for _, name := range names {
				p := config.GetPreset(name)
				fmt.Printf("  %-12s voxel %.3gm, %d steps, floor %v, collisions %v\n",
					name, p.VoxelSize, p.Steps, p.Floor, p.Collisions)
			}
		},
	}

	rootCmd.AddCommand(runCmd, exportCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	switch {
	case configFile != "":
		return config.Load(configFile)
	case preset != "":
		cfg := config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
		return cfg, nil
	default:
		return config.GetPreset("cantilever"), nil
	}
}

// buildLattice creates the lattice of the run and returns the voxels whose
// displacement is traced
func buildLattice(cfg *config.Config) (*sponge.Lattice, []int, error) {
	l, err := sponge.NewLatticeFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	if documentFile != "" {
		doc, err := loader.Load(documentFile)
		if err != nil {
			return nil, nil, err
		}
		if err := loader.Populate(l, doc); err != nil {
			return nil, nil, err
		}
		return l, farthestVoxels(l), nil
	}

	if length < 1 || width < 1 {
		return nil, nil, fmt.Errorf("beam of %dx%dx%d voxels", length, width, width)
	}

	mat := l.AddMaterial(youngs, density)
	for x := 0; x < length; x++ {
		for y := 0; y < width; y++ {
			for z := 0; z < width; z++ {
				if _, err := l.AddVoxel(mat, geom.Index3D{X: x, Y: y, Z: z}); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	tip := make([]int, 0, width*width)
	for y := 0; y < width; y++ {
		for z := 0; z < width; z++ {
			base, err := l.External(geom.Index3D{Y: y, Z: z})
			if err != nil {
				return nil, nil, err
			}
			base.Fixed = actor.FixedAll

			end := geom.Index3D{X: length - 1, Y: y, Z: z}
			if tipLoad != 0 {
				ext, err := l.External(end)
				if err != nil {
					return nil, nil, err
				}
				ext.Force = mgl64.Vec3{0, 0, -tipLoad}
			}
			i, _ := l.VoxelIndex(end)
			tip = append(tip, i)
		}
	}
	return l, tip, nil
}

// farthestVoxels are the voxels of largest x of a document
func farthestVoxels(l *sponge.Lattice) []int {
	maxX := 0
	var far []int
	for i := 0; i < l.VoxelCount(); i++ {
		v, _ := l.Voxel(i)
		switch {
		case len(far) == 0 || v.Index.X > maxX:
			maxX = v.Index.X
			far = []int{i}
		case v.Index.X == maxX:
			far = append(far, i)
		}
	}
	return far
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if steps > 0 {
		cfg.Steps = steps
	}

	l, traced, err := buildLattice(cfg)
	if err != nil {
		return err
	}
	if len(traced) == 0 {
		return errors.New("lattice has no voxels")
	}

	var yielded, failed, unstable int
	l.Events.Subscribe(sponge.LINK_YIELD, func(sponge.Event) { yielded++ })
	l.Events.Subscribe(sponge.LINK_FAILURE, func(sponge.Event) { failed++ })
	l.Events.Subscribe(sponge.ON_INSTABILITY, func(sponge.Event) { unstable++ })

	every := max(1, cfg.Steps/max(1, samples))
	trace := make([]float64, 0, cfg.Steps/every+1)

	var runErr error
	for s := 0; s < cfg.Steps; s++ {
		if _, runErr = l.DoTimeStep(cfg.TimeStep); runErr != nil {
			break
		}
		if s%every == 0 {
			trace = append(trace, tipDeflection(l, traced)*1000)
		}
	}

	fmt.Println(titleStyle.Render(fmt.Sprintf("%d voxels, %d links", l.VoxelCount(), l.LinkCount())))
	if len(trace) > 1 {
		fmt.Println(asciigraph.Plot(trace,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("tip deflection (mm)"),
		))
		fmt.Println()
	}

	rows := []struct {
		label string
		value string
	}{
		{"state", l.State().String()},
		{"time", fmt.Sprintf("%.6f s", l.Time())},
		{"steps", fmt.Sprintf("%d", l.StepCount())},
		{"time step", fmt.Sprintf("%.3e s", l.LastTimeStep())},
		{"tip deflection", fmt.Sprintf("%.4f mm", tipDeflection(l, traced)*1000)},
		{"max displacement", fmt.Sprintf("%.4f mm", l.StateInfo(sponge.DisplacementMagnitude, sponge.Max)*1000)},
		{"max stress", fmt.Sprintf("%.4g Pa", l.StateInfo(sponge.EngineeringStress, sponge.Max))},
		{"kinetic energy", fmt.Sprintf("%.4g J", l.StateInfo(sponge.KineticEnergy, sponge.Total))},
		{"strain energy", fmt.Sprintf("%.4g J", l.StateInfo(sponge.StrainEnergy, sponge.Total))},
		{"yielded / failed", fmt.Sprintf("%d / %d", yielded, failed)},
	}

	summary := ""
	for i, r := range rows {
		if i > 0 {
			summary += "\n"
		}
		summary += labelStyle.Render(r.label) + valueStyle.Render(r.value)
	}
	fmt.Println(panelStyle.Render(summary))

	if unstable > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("time step exceeded the stable limit %d times", unstable)))
	}
	return runErr
}

func tipDeflection(l *sponge.Lattice, traced []int) float64 {
	sum := 0.0
	for _, i := range traced {
		v, _ := l.Voxel(i)
		sum += v.Displacement(l.VoxelSize()).Z()
	}
	return sum / float64(len(traced))
}

func exportDocument(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, _, err := buildLattice(cfg)
	if err != nil {
		return err
	}
	if err := loader.Save(outFile, loader.FromLattice(l)); err != nil {
		return err
	}
	fmt.Printf("wrote %d voxels to %s\n", l.VoxelCount(), outFile)
	return nil
}
