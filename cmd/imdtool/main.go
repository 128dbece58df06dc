// Command imdtool inspects and creates ImageDisk (.imd) floppy container
// files for the PDQ-3 disk subsystem, the way cmd_imdtool_src/convertprg.go
// offered a small single-purpose CLI over one file format.
package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v2"

	"github.com/hveit/duosim/floppy"
)

func main() {
	app := &cli.App{
		Name:    "imdtool",
		Usage:   "inspect and create PDQ-3 ImageDisk (.imd) floppy images",
		Version: "v0.1.0",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "write a blank, formatted 77-track image",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .imd path", Value: "blank.imd"},
					&cli.StringFlag{Name: "comment", Aliases: []string{"c"}, Usage: "comment header", Value: "imdtool blank image"},
				},
				Action: func(c *cli.Context) error {
					img := floppy.NewBlankImage(c.String("comment"))
					f, err := os.Create(c.String("out"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer f.Close()
					n, err := img.WriteTo(f)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Printf("wrote %d bytes to %s\n", n, c.String("out"))
					return nil
				},
			},
			{
				Name:      "dump",
				Usage:     "print one sector's bytes in hex",
				ArgsUsage: "<image.imd>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "cyl", Usage: "cylinder", Value: 0},
					&cli.IntFlag{Name: "head", Usage: "head", Value: 0},
					&cli.IntFlag{Name: "sec", Usage: "sector number", Value: 1},
				},
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						cli.ShowSubcommandHelp(c)
						return cli.Exit("missing image path", 86)
					}
					f, err := os.Open(path)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					defer f.Close()
					img, err := floppy.ReadImage(f)
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					data, err := img.ReadSector(uint8(c.Int("cyl")), uint8(c.Int("head")), uint8(c.Int("sec")))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					for i := 0; i < len(data); i += 16 {
						end := i + 16
						if end > len(data) {
							end = len(data)
						}
						fmt.Printf("%04x  % x\n", i, data[i:end])
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
