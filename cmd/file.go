package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"remotefile/core"
	"remotefile/protocols"
)

var (
	modeFlag   string
	offsetFlag string
	resumeFlag bool
	fieldFlag  string
)

// withFile dials connName, binds remote and runs fn. The connection is
// closed afterwards.
func withFile(connName, remote string, fn func(ctx context.Context, f *core.RemoteFile) error) error {
	_, tm, err := loadManager()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	f, conn, err := tm.Open(ctx, connName, remote, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(ctx, f)
}

func transferOptions() ([]core.TransferOption, error) {
	var opts []core.TransferOption
	if modeFlag != "" {
		mode, err := protocols.ParseTransferMode(modeFlag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMode(mode))
	}
	if offsetFlag != "" {
		offset, err := parseOffset(offsetFlag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithOffset(offset))
	}
	if resumeFlag {
		opts = append(opts, core.WithAutoResume())
	}
	return opts, nil
}

// parseOffset accepts plain byte counts and humanized sizes such as 4KiB.
func parseOffset(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("offset %q too large", s)
	}
	return int64(n), nil
}

func isDirTarget(p string) bool {
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		return true
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

var getCmd = &cobra.Command{
	Use:   "get <connection> <remote> [local]",
	Short: "Download a remote file",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := transferOptions()
		if err != nil {
			return err
		}
		local := "."
		if len(args) == 3 {
			local = args[2]
		}
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			if isDirTarget(local) {
				_, err := f.SaveToPath(ctx, local, opts...)
				return err
			}
			_, err := f.SaveToFile(ctx, local, opts...)
			return err
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <connection> <local> <remote>",
	Short: "Upload a local file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := transferOptions()
		if err != nil {
			return err
		}
		return withFile(args[0], args[2], func(ctx context.Context, f *core.RemoteFile) error {
			_, err := f.Put(ctx, args[1], opts...)
			return err
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <connection> <remote>",
	Short: "Show name, path and size of a remote file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			if fieldFlag != "" {
				v, err := f.Get(ctx, fieldFlag)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, v)
				return nil
			}

			size, ok, err := f.Size(ctx)
			if err != nil {
				return err
			}
			sizeStr := "unavailable"
			if ok {
				sizeStr = fmt.Sprintf("%s (%d bytes)", humanize.IBytes(uint64(size)), size)
			}
			fmt.Fprintf(out, "name: %s\npath: %s\nsize: %s\n", f.Name(), f.Path(), sizeStr)
			return nil
		})
	},
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <connection> <remote> <octal-mode>",
	Short: "Change permissions of a remote file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		perm, err := strconv.ParseUint(args[2], 8, 32)
		if err != nil || perm > 0o777 {
			return fmt.Errorf("invalid mode %q", args[2])
		}
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			_, err := f.Chmod(ctx, os.FileMode(perm))
			return err
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <connection> <remote> <new-name>",
	Short: "Rename a remote file within its directory",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			nf, err := f.Rename(ctx, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nf.Path())
			return nil
		})
	},
}

var moveCmd = &cobra.Command{
	Use:   "mv <connection> <remote> <destination>",
	Short: "Move a remote file; a destination ending in / keeps the name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			nf, err := f.Move(ctx, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nf.Path())
			return nil
		})
	},
}

var copyCmd = &cobra.Command{
	Use:   "cp <connection> <remote> <destination>",
	Short: "Copy a remote file on the same connection",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			nf, err := f.Copy(ctx, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nf.Path())
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "rm <connection> <remote>",
	Short: "Delete a remote file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			return f.Delete(ctx)
		})
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists <connection> <remote>",
	Short: "Print whether a remote file exists",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFile(args[0], args[1], func(ctx context.Context, f *core.RemoteFile) error {
			ok, err := f.Exists(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, putCmd} {
		c.Flags().StringVarP(&modeFlag, "mode", "m", "", "transfer mode: binary or text (default: by extension)")
		c.Flags().StringVar(&offsetFlag, "offset", "", "resume at this byte offset, e.g. 512 or 4KiB")
		c.Flags().BoolVar(&resumeFlag, "resume", false, "resume from what was already transferred")
	}
	statCmd.Flags().StringVar(&fieldFlag, "field", "", "print a single property: name, path or size")

	rootCmd.AddCommand(getCmd, putCmd, statCmd, chmodCmd, renameCmd, moveCmd, copyCmd, deleteCmd, existsCmd)
}
