// Command pdq3run loads a PDQ-3 segment image into guest memory and runs
// the P-code interpreter against it, with an FDC+DMA floppy controller
// mapped onto the top-of-memory MMIO page, the way cmd_hexload_src/hand_asm.go
// offered a small standalone front-end over one core.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v2"

	"github.com/hveit/duosim/floppy"
	"github.com/hveit/duosim/io"
	"github.com/hveit/duosim/irq"
	"github.com/hveit/duosim/memory"
	"github.com/hveit/duosim/pcode"
	"github.com/hveit/duosim/sched"
)

// mmioBase/mmioSpan place the 16-port FDC+DMA page at the top of the P-code
// address space, matching the QBUS-style device page pdq3_fdc.c expects.
const (
	mmioBase = 0xFFF0
	mmioSpan = 16
)

func main() {
	app := &cli.App{
		Name:    "pdq3run",
		Usage:   "run a PDQ-3 P-code segment image with an FDC-backed floppy drive 0",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "raw segment-0 image to load at address 0"},
			&cli.StringFlag{Name: "disk", Aliases: []string{"d"}, Usage: "IMD image to attach as drive 0"},
			&cli.UintFlag{Name: "entry", Usage: "initial IPC within segment 0", Value: 0},
			&cli.IntFlag{Name: "steps", Usage: "P-code instruction budget", Value: 1_000_000},
			&cli.BoolFlag{Name: "halt-on-exception", Usage: "surface guest exceptions as Go errors instead of trapping to seg2/proc2"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	imgPath := c.String("image")
	if imgPath == "" {
		cli.ShowAppHelp(c)
		return cli.Exit("missing -image", 86)
	}
	seg, err := os.ReadFile(imgPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ports := io.NewTable()
	wheel := sched.NewWheel()
	ctl := floppy.NewController(wheel)
	if diskPath := c.String("disk"); diskPath != "" {
		f, err := os.Open(diskPath)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		img, err := floppy.ReadImage(f)
		f.Close()
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		ctl.Attach(0, img)
	} else {
		ctl.Attach(0, floppy.NewBlankImage("pdq3run scratch disk"))
	}
	adapter := &floppy.PortAdapter{Base: uint8(mmioBase & 0xFF), Ctl: ctl}
	if err := ports.Register(&io.IoInfo{
		Name:      "fdc",
		Base:      uint8(mmioBase & 0xFF),
		Span:      mmioSpan,
		Direction: io.DirBoth,
		Handler:   adapter,
	}); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	bus, err := memory.NewFabric(memory.FabricConfig{
		Banks:    1,
		MMIOBase: mmioBase,
		MMIOSpan: mmioSpan,
		IO:       ports,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	bus.PowerOn()
	for i, b := range seg {
		bus.WriteByte(uint16(i), b)
	}
	ctl.DMA.Bind(bus)

	levels := irq.NewLevelController()
	engine := pcode.NewEngine(bus, levels)
	engine.HaltOnException = c.Bool("halt-on-exception")
	engine.SEGB = 0
	engine.IPC = uint16(c.Uint("entry"))

	steps := c.Int("steps")
	var ran int
	for ; ran < steps; ran++ {
		if err := engine.Step(); err != nil {
			fmt.Fprintf(os.Stderr, "stopped after %d steps at ipc=0x%04x: %v\n", ran, engine.IPC, err)
			break
		}
		wheel.Advance(1)
	}
	fmt.Printf("ran %d P-code steps\n", ran)
	return nil
}
