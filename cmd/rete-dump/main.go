package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nmxmxh/rete_v1/engine"
	"github.com/nmxmxh/rete_v1/engine/binimage"
	"github.com/nmxmxh/rete_v1/utils"
)

// Config holds the tool settings, loadable from a TOML file
type Config struct {
	Verbose  bool   `toml:"verbose"`
	LogLevel string `toml:"log_level"`
}

var (
	cfgPath string
	cfg     Config
)

func loadConfig() {
	if cfgPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		cfgPath = home + "/.rete-dump.toml"
		if _, err := os.Stat(cfgPath); err != nil {
			return
		}
	}
	if _, err := toml.DecodeFile(cfgPath, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
	}
}

func main() {
	root := &cobra.Command{
		Use:   "rete-dump",
		Short: "Inspect and verify rete binary images",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a TOML config file")

	root.AddCommand(headerCmd(), chunksCmd(), verifyCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func headerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <image>",
		Short: "Print the image header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := inspect(args[0])
			if err != nil {
				return err
			}
			fmt.Println("prefix:    ", binimage.ImagePrefix)
			fmt.Println("version:   ", info.Version)
			fmt.Println("compressed:", info.Compressed)
			fmt.Println("chunks:    ", len(info.Chunks))
			return nil
		},
	}
}

func chunksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chunks <image>",
		Short: "List the image chunks with their block sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := inspect(args[0])
			if err != nil {
				return err
			}
			var total uint64
			for _, c := range info.Chunks {
				fmt.Printf("%-14s storage %-10s data %s\n",
					c.Name,
					humanize.Bytes(c.StorageSize),
					humanize.Bytes(c.DataSize))
				total += c.StorageSize + c.DataSize
			}
			fmt.Printf("total          %s\n", humanize.Bytes(total))
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Load the image into a scratch environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := utils.DefaultLogger("rete-dump")
			if cfg.Verbose {
				logger.SetLevel(utils.DEBUG)
			}
			env := engine.New(engine.WithLogger(logger))
			if err := env.BloadFile(args[0]); err != nil {
				return err
			}
			fmt.Println("image ok")
			fmt.Println("facts:      ", env.Facts.Count())
			fmt.Println("activations:", len(env.Agenda()))
			return nil
		},
	}
}

func inspect(path string) (*binimage.ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return binimage.Inspect(f)
}
