package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/iaanotams/internal/app"
	"github.com/John-Robertt/iaanotams/internal/config"
	"github.com/John-Robertt/iaanotams/internal/feed"
	"github.com/John-Robertt/iaanotams/internal/infra/httpx"
)

type rootFlags struct {
	config  string
	proxy   string
	out     string
	verbose bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var fl rootFlags

	root := &cobra.Command{
		Use:           "iaanotams",
		Short:         "抓取并解析 IAA AeroInfo 发布的 NOTAM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&fl.config, "config", "", "配置文件路径（默认读取当前目录下的 notams.json，可选）")
	root.PersistentFlags().StringVar(&fl.proxy, "proxy", "", "HTTP 代理地址；--proxy= 表示关闭配置中的代理")
	root.PersistentFlags().StringVarP(&fl.out, "out", "o", "", "把结果以 JSON 写入该文件（原子替换），stdout 不再输出结果")
	root.PersistentFlags().BoolVarP(&fl.verbose, "verbose", "v", false, "在 stderr 输出调试日志")

	root.AddCommand(
		newListCmd(&fl),
		newShowCmd(&fl),
		newLookupCmd(&fl),
		newVersionCmd(),
	)
	return root
}

func newListCmd(fl *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出当前 NOTAM（内部编号 + ICAO 编号）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := setup(cmd, fl)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if fl.out != "" {
				return writeJSONFile(fl.out, listingDoc(entries))
			}
			return emitListing(cmd.OutOrStdout(), entries)
		},
	}
}

func newShowCmd(fl *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <internal-id>...",
		Short: "按内部编号（例如 532372）抓取 NOTAM 详情",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := setup(cmd, fl)
			if err != nil {
				return err
			}
			defer closeFn()

			res := svc.Details(cmd.Context(), args)
			if err := emitResults(cmd.OutOrStdout(), fl.out, res); err != nil {
				return err
			}
			failed := 0
			for _, r := range res {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.ID, r.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d/%d 条详情获取失败", failed, len(res))
			}
			return nil
		},
	}
}

func newLookupCmd(fl *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <icao-id>",
		Short: "按 ICAO 编号（例如 C2000/15）查找 NOTAM 详情",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := setup(cmd, fl)
			if err != nil {
				return err
			}
			defer closeFn()

			entry, rec, err := svc.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emitResults(cmd.OutOrStdout(), fl.out, []app.Result{{ID: entry.InternalID, Record: rec}})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "iaanotams %s (commit: %s)\n", version, commit)
		},
	}
}

func emitResults(w io.Writer, out string, res []app.Result) error {
	if out != "" {
		return writeJSONFile(out, detailDocs(res))
	}
	return emitDetails(w, res)
}

// setup 读取配置并构造 Service；返回的 closeFn 负责释放连接与缓存。
func setup(cmd *cobra.Command, fl *rootFlags) (app.Service, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return app.Service{}, nil, fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: fl.config,
		ProxyURL:   fl.proxy,
		ProxySet:   cmd.Flags().Changed("proxy"),
	})
	if err != nil {
		return app.Service{}, nil, err
	}

	logger := newLogger(cmd.ErrOrStderr(), fl.verbose)

	client, err := httpx.NewClient(httpx.Options{
		ProxyURL:       eff.ProxyURL,
		ConnectTimeout: eff.ConnectTimeout,
		MinInterval:    eff.MinInterval,
		RetryMax:       eff.RetryMax,
	})
	if err != nil {
		return app.Service{}, nil, fmt.Errorf("初始化 HTTP client 失败：%w", err)
	}

	f := feed.New(client,
		feed.WithListingURL(eff.ListingURL),
		feed.WithDetailURL(eff.DetailURL),
		feed.WithCacheTTL(eff.CacheTTL),
		feed.WithCacheSize(eff.CacheSize),
		feed.WithLogger(logger),
	)
	logger.Debug("feed ready",
		"listing", eff.ListingURL,
		"detail", eff.DetailURL,
		"proxy", strings.TrimSpace(eff.ProxyURL) != "",
		"cache_ttl", eff.CacheTTL,
	)
	return app.Service{Feed: f}, func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
