// Command gpublur applies a Gaussian blur to an image on the GPU.
//
// Usage:
//
//	gpublur blur [--input src/eggs.jpg] [--output src/output.png] [--intensity 1.0]
//	             [--kernel path.wgsl] [--timeout 0] [--backend all] [--power high]
//	             [--verify] [--v]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpublur"
	"github.com/gogpu/gpublur/internal/gpu"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "blur":
		return runBlur(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "gpublur: unknown command %q\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: gpublur blur [flags]")
	fmt.Fprintln(w, "run 'gpublur blur -h' for the list of flags")
}

func runBlur(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blur", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input     = fs.String("input", "src/eggs.jpg", "input image (png, jpeg, gif, bmp, tiff, webp)")
		output    = fs.String("output", "src/output.png", "output image; format follows the extension (png, jpg, bmp, tif)")
		intensity = fs.Float64("intensity", gpublur.DefaultIntensity, "blur standard deviation in pixels, clamped to [1, 10]")
		kernel    = fs.String("kernel", "", "WGSL kernel template replacing the built-in one")
		timeout   = fs.Duration("timeout", 0, "maximum wait for the GPU result; 0 waits indefinitely")
		backend   = fs.String("backend", "all", "graphics API: all, vulkan, metal, dx12, gl or gles")
		power     = fs.String("power", "high", "adapter preference: high, low or none")
		verify    = fs.Bool("verify", false, "check the GPU result against the CPU reference")
		verbose   = fs.Bool("v", false, "verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "gpublur: unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return exitUsage
	}

	backends, err := parseBackends(*backend)
	if err != nil {
		fmt.Fprintf(stderr, "gpublur: %v\n", err)
		return exitUsage
	}
	pref, err := parsePower(*power)
	if err != nil {
		fmt.Fprintf(stderr, "gpublur: %v\n", err)
		return exitUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	gpublur.SetLogger(log)

	sigma, clamped := gpublur.ClampIntensity(*intensity)
	if clamped {
		log.Warn("intensity out of range, clamped",
			"requested", *intensity, "used", sigma,
			"min", gpublur.MinIntensity, "max", gpublur.MaxIntensity)
	}

	opts := []gpublur.Option{
		gpublur.WithIntensity(sigma),
		gpublur.WithBackends(backends),
		gpublur.WithPowerPreference(pref),
		gpublur.WithMapTimeout(*timeout),
		gpublur.WithVerify(*verify),
	}
	if *kernel != "" {
		tmpl, err := gpu.LoadTemplate(*kernel)
		if err != nil {
			fmt.Fprintf(stderr, "gpublur: %v\n", err)
			return exitFatal
		}
		opts = append(opts, gpublur.WithKernelTemplate(tmpl))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := gpublur.BlurFile(ctx, *input, *output, opts...)
	if err != nil {
		reportError(stderr, err)
		return exitFatal
	}
	fmt.Fprint(stdout, summary(message.NewPrinter(language.English), res))
	return exitOK
}

// reportError prints err and, for shader failures, the compiler's
// diagnostic on its own lines.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "gpublur: %v\n", err)
	var ce *gpublur.CompileError
	if errors.As(err, &ce) && strings.Contains(ce.Diagnostic, "\n") {
		fmt.Fprintf(w, "%s diagnostic:\n%s\n", ce.Stage, ce.Diagnostic)
	}
	switch {
	case errors.Is(err, gpublur.ErrNoAdapter):
		fmt.Fprintln(w, "hint: no compute-capable GPU found; try another --backend")
	case errors.Is(err, gpublur.ErrMapTimeout):
		fmt.Fprintln(w, "hint: the GPU did not finish in time; raise --timeout")
	}
}

func summary(p *message.Printer, res *gpublur.Result) string {
	pixels := int(res.Width) * int(res.Height)
	s := p.Sprintf("Blurred image saved to %s (%d×%d, %d pixels, intensity %.2f) on %s in %v\n",
		res.Output, res.Width, res.Height, pixels, res.Intensity, res.Adapter, res.Elapsed.Round(time.Millisecond))
	if res.MaxDeviation >= 0 {
		s += p.Sprintf("Verified against CPU reference: max deviation %d\n", res.MaxDeviation)
	}
	return s
}

func parseBackends(name string) (gputypes.Backends, error) {
	switch strings.ToLower(name) {
	case "all", "":
		return gputypes.BackendsAll, nil
	case "vulkan":
		return gputypes.BackendsVulkan, nil
	case "metal":
		return gputypes.BackendsMetal, nil
	case "dx12":
		return gputypes.BackendsDX12, nil
	case "gl", "gles":
		return gputypes.BackendsGL, nil
	default:
		return 0, fmt.Errorf("unknown backend %q (want all, vulkan, metal, dx12 or gl)", name)
	}
}

func parsePower(name string) (gputypes.PowerPreference, error) {
	switch strings.ToLower(name) {
	case "high", "":
		return gputypes.PowerPreferenceHighPerformance, nil
	case "low":
		return gputypes.PowerPreferenceLowPower, nil
	case "none":
		return gputypes.PowerPreferenceNone, nil
	default:
		return 0, fmt.Errorf("unknown power preference %q (want high, low or none)", name)
	}
}
