// Command psobind prints the resource bindings of a pipeline built from WGSL
// shader files.
//
// Each file is compiled to one shader stage. The pipeline uses the default
// signature synthesized from the shaders' resources, so the table shows
// where every resource lands on each backend:
//
//	psobind -backend vulkan shader.vert.wgsl shader.frag.wgsl
//
// With -archive the pipeline is also remapped and archived, and the store
// statistics are printed. With -layout the bind group and pipeline layouts
// are created on a no-op HAL device to check that the layout is accepted.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/pipelinelayout"
	"github.com/gogpu/psoarchive/remap"
	"github.com/gogpu/psoarchive/shader"
	"github.com/gogpu/psoarchive/signature"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/term"
)

const (
	headerColor  = "\x1b[1;36m"
	defaultColor = "\x1b[0m"
)

var backendNames = map[string]gputypes.Backend{
	"vulkan": gputypes.BackendVulkan,
	"gl":     gputypes.BackendGL,
	"webgpu": gputypes.BackendBrowserWebGPU,
	"metal":  gputypes.BackendMetal,
	"dx12":   gputypes.BackendDX12,
}

func main() {
	var (
		backendName = flag.String("backend", "", "target backend: vulkan, gl, webgpu, metal or dx12 (default: preferred remapper backend)")
		dynamic     = flag.String("dynamic", "", "comma-separated resources to declare dynamic")
		archive     = flag.Bool("archive", false, "remap and archive the pipeline")
		strip       = flag.Bool("strip", false, "strip reflection data when archiving")
		createHAL   = flag.Bool("layout", false, "create the pipeline layout on a no-op HAL device")
		verbose     = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: psobind [flags] shader.wgsl...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	backend, ok := backendNames[strings.ToLower(*backendName)]
	if *backendName == "" {
		backend, ok = remap.DefaultRegistry().Preferred()
	}
	if !ok {
		log.Fatalf("unknown backend %q", *backendName)
	}
	if *verbose {
		psoarchive.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	shaders, err := compileFiles(flag.Args())
	if err != nil {
		log.Fatal(err)
	}

	rl := psoarchive.ResourceLayout{DefaultVariableType: signature.VarMutable}
	for _, name := range strings.Split(*dynamic, ",") {
		if name = strings.TrimSpace(name); name != "" {
			rl.Variables = append(rl.Variables, psoarchive.VariableDesc{Name: name, Type: signature.VarDynamic})
		}
	}

	name := strings.TrimSuffix(filepath.Base(flag.Arg(0)), filepath.Ext(flag.Arg(0)))
	sig, err := psoarchive.DefaultSignature(name, shaders, rl)
	if err != nil {
		log.Fatal(err)
	}
	sigs := []*signature.ResourceSignature{sig}

	a := psoarchive.New(psoarchive.WithBackends(backend), psoarchive.WithStripReflection(*strip))
	defer a.Close()

	bindings, err := a.PipelineResourceBindings(psoarchive.BindingAttribs{Backend: backend, Signatures: sigs})
	if err != nil {
		log.Fatal(err)
	}
	printBindings(os.Stdout, bindings, term.IsTerminal(int(os.Stdout.Fd())))

	if *createHAL {
		p, err := a.Layout(backend, sigs)
		if err != nil {
			log.Fatal(err)
		}
		if err := createLayout(p, name); err != nil {
			log.Fatal(err)
		}
	}

	if *archive {
		rec, err := a.ArchivePipeline(&psoarchive.PipelineDesc{Name: name, Signatures: sigs, Shaders: shaders})
		if err != nil {
			log.Fatal(err)
		}
		for _, s := range rec.Shaders[backend] {
			e, _ := a.Store().Entry(s.Index)
			fmt.Printf("%s: %s stage archived at index %d (%d bytes)\n", s.Shader, s.Stage, s.Index, e.Size)
		}
		st := a.Store().Stats()
		fmt.Printf("store: %d blobs, %d bytes\n", st.Blobs, st.Bytes)
	}
}

// compileFiles compiles every file for the backends that have a remapper.
func compileFiles(paths []string) ([]*shader.Shader, error) {
	shaders := make([]*shader.Shader, 0, len(paths))
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sh, err := shader.Compile(shader.Desc{Name: filepath.Base(path), Source: string(src)})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		shaders = append(shaders, sh)
	}
	return shaders, nil
}

// printBindings writes the binding table. Terminals get a highlighted
// header; pipes get plain tab-separated columns.
func printBindings(w io.Writer, bindings []layout.PipelineResourceBinding, tty bool) {
	header := "NAME\tKIND\tSTAGES\tVAR\tGROUP\tSET\tBINDING"
	if !tty {
		fmt.Fprintln(w, header)
		for _, b := range bindings {
			fmt.Fprintln(w, bindingRow(b))
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor+header+defaultColor)
	for _, b := range bindings {
		fmt.Fprintln(tw, bindingRow(b))
	}
	tw.Flush()
}

func bindingRow(b layout.PipelineResourceBinding) string {
	name := b.Name
	if b.ArraySize > 1 {
		name = fmt.Sprintf("%s[%d]", b.Name, b.ArraySize)
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d\t%d",
		name, b.Kind, b.Stages, b.VarType, b.BindingGroup, b.DescriptorSet, b.Binding)
}

// createLayout creates and destroys the HAL layouts of p on a no-op device.
func createLayout(p *layout.Pipeline, label string) error {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return err
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return errors.New("no HAL adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		return err
	}
	defer openDev.Device.Destroy()

	l, err := pipelinelayout.Create(openDev.Device, p, label)
	if err != nil {
		return err
	}
	defer l.Destroy()

	fmt.Printf("layout: %d bind group layouts\n", len(l.BindGroupLayouts))
	return nil
}
