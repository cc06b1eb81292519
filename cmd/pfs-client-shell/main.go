package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pfs-project/pfs/build"
	"github.com/pfs-project/pfs/client"
	"github.com/pfs-project/pfs/config"
)

var configPath string

const (
	exitCodeGeneral = 1
	exitCodeUsage    = 64
)

func die(args ...interface{}) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(exitCodeGeneral)
}

// session opens one client.Client for the duration of a single command
// and tears it down afterward; a shell invocation mirrors a single
// client program's lifetime (§6 initialize/finish).
func session() *client.Client {
	servers, err := config.Load(configPath)
	if err != nil {
		die("could not load server list:", err)
	}
	c, err := client.Initialize(servers)
	if err != nil {
		die("could not initialize client session:", err)
	}
	return c
}

var createCmd = &cobra.Command{
	Use:   "create [name] [stripe-width]",
	Short: "create a new empty file with the given stripe width",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		width, err := strconv.Atoi(args[1])
		if err != nil {
			die("invalid stripe width:", err)
		}
		c := session()
		defer c.Finish()
		if err := c.Create(args[0], width); err != nil {
			die("create failed:", err)
		}
		fmt.Println("created", args[0])
	},
}

var catCmd = &cobra.Command{
	Use:   "cat [name] [offset] [num-bytes]",
	Short: "read num-bytes starting at offset and write them to stdout",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		offset, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			die("invalid offset:", err)
		}
		num, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			die("invalid num-bytes:", err)
		}

		c := session()
		defer c.Finish()
		descriptor, err := c.Open(args[0], client.ModeRead)
		if err != nil {
			die("open failed:", err)
		}
		defer c.Close(descriptor)

		data, err := c.Read(descriptor, num, offset)
		if err != nil {
			die("read failed:", err)
		}
		os.Stdout.Write(data)
	},
}

var writeCmd = &cobra.Command{
	Use:   "write [name] [offset]",
	Short: "write stdin to name starting at offset",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		offset, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			die("invalid offset:", err)
		}
		buf, err := io.ReadAll(os.Stdin)
		if err != nil {
			die("could not read stdin:", err)
		}

		c := session()
		defer c.Finish()
		descriptor, err := c.Open(args[0], client.ModeWrite)
		if err != nil {
			die("open failed:", err)
		}
		defer c.Close(descriptor)

		n, err := c.Write(descriptor, buf, offset)
		if err != nil {
			die("write failed:", err)
		}
		fmt.Println("wrote", n, "bytes")
	},
}

var deleteCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "delete a file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := session()
		defer c.Finish()
		if err := c.Delete(args[0]); err != nil {
			die("delete failed:", err)
		}
		fmt.Println("deleted", args[0])
	},
}

var statCmd = &cobra.Command{
	Use:   "stat [name]",
	Short: "print a file's size, timestamps, and striping recipe",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := session()
		defer c.Finish()
		descriptor, err := c.Open(args[0], client.ModeRead)
		if err != nil {
			die("open failed:", err)
		}
		defer c.Close(descriptor)

		meta, err := c.Fstat(descriptor)
		if err != nil {
			die("fstat failed:", err)
		}
		fmt.Printf("name:         %s\n", meta.Name)
		fmt.Printf("size:         %d\n", meta.Size)
		fmt.Printf("stripe width: %d\n", meta.StripeWidth)
		fmt.Printf("ctime:        %s\n", meta.CTime)
		fmt.Printf("mtime:        %s\n", meta.MTime)
		fmt.Printf("chunks:       %d\n", len(meta.Chunks))
	},
}

var execstatCmd = &cobra.Command{
	Use:   "execstat",
	Short: "print this session's cache and token counters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := session()
		defer c.Finish()
		stats := c.ExecStat()
		fmt.Printf("read_hits:         %d\n", stats.ReadHits)
		fmt.Printf("write_hits:        %d\n", stats.WriteHits)
		fmt.Printf("evictions:         %d\n", stats.Evictions)
		fmt.Printf("writebacks:        %d\n", stats.WriteBacks)
		fmt.Printf("invalidations:     %d\n", stats.Invalidations)
		fmt.Printf("close_writebacks:  %d\n", stats.CloseWriteBacks)
		fmt.Printf("close_evictions:   %d\n", stats.CloseEvictions)
	},
}

func main() {
	root := &cobra.Command{
		Use:   os.Args[0],
		Short: "pfs client shell v" + build.Version,
		Long:  "pfs client shell v" + build.Version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "pfs.servers", "path to the server list file")
	root.AddCommand(createCmd, catCmd, writeCmd, deleteCmd, statCmd, execstatCmd)

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeUsage)
	}
}
