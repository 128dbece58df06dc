// Command z80run loads a ROM image and runs it on the 8080/Z80 interpreter,
// with an FDC+DMA floppy controller wired onto the port space, the way
// cmd_hexload_src/hand_asm.go offered a small standalone front-end over one
// core.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v2"

	"github.com/hveit/duosim/disassemble"
	"github.com/hveit/duosim/floppy"
	"github.com/hveit/duosim/io"
	"github.com/hveit/duosim/memory"
	"github.com/hveit/duosim/sched"
	"github.com/hveit/duosim/z80"
)

// fdcPortBase is where the 16-port FDC+DMA page is mapped into the Z80 port
// space; arbitrary but clear of the low ports a monitor ROM typically probes.
const fdcPortBase = 0xF0

func main() {
	app := &cli.App{
		Name:    "z80run",
		Usage:   "run an 8080/Z80 ROM image with an FDC-backed floppy drive 0",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rom", Aliases: []string{"r"}, Usage: "ROM image to load at 0x0000"},
			&cli.StringFlag{Name: "disk", Aliases: []string{"d"}, Usage: "IMD image to attach as drive 0"},
			&cli.BoolFlag{Name: "i8080", Usage: "run in strict 8080 mode instead of full Z80"},
			&cli.BoolFlag{Name: "trace", Usage: "print a disassembly trace of every instruction executed"},
			&cli.Int64Flag{Name: "cycles", Usage: "cycle budget to run before stopping", Value: 1_000_000},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		cli.ShowAppHelp(c)
		return cli.Exit("missing -rom", 86)
	}
	rom, err := os.ReadFile(romPath)
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
		ctl.Attach(0, floppy.NewBlankImage("z80run scratch disk"))
	}
	adapter := &floppy.PortAdapter{Base: fdcPortBase, Ctl: ctl}
	if err := ports.Register(&io.IoInfo{
		Name:      "fdc",
		Base:      fdcPortBase,
		Span:      16,
		Direction: io.DirBoth,
		Handler:   adapter,
	}); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	bus, err := memory.NewFabric(memory.FabricConfig{
		Banks: 1,
		IO:    ports,
	})
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	bus.PowerOn()
	bus.LoadROM(rom)
	ctl.DMA.Bind(bus)

	mode := z80.ModeZ80
	if c.Bool("i8080") {
		mode = z80.Mode8080
	}
	cpu := z80.New(mode, bus, ports, nil)

	budget := c.Int64("cycles")
	trace := c.Bool("trace")
	var ran int64
	for ran < budget {
		if trace {
			text, _ := disassemble.Step(cpu.PC, bus, ports)
			fmt.Printf("%04x  %s\n", cpu.PC, text)
		}
		n, err := cpu.Step()
		if err != nil {
			fmt.Fprintf(os.Stderr, "halted at pc=0x%04x: %v\n", cpu.PC, err)
			break
		}
		ran += int64(n)
		wheel.Advance(int64(n))
	}
	fmt.Printf("ran %d cycles, halted=%v\n", ran, cpu.Halted())
	return nil
}
