package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/sunostudio/pkg/cmd/create"
	"github.com/igolaizola/sunostudio/pkg/cmd/download"
	"github.com/igolaizola/sunostudio/pkg/cmd/migrate"
	"github.com/igolaizola/sunostudio/pkg/cmd/preset"
	"github.com/igolaizola/sunostudio/pkg/cmd/serve"
	"github.com/igolaizola/sunostudio/pkg/cmd/setting"
	"github.com/igolaizola/sunostudio/pkg/cmd/upload"
	"github.com/igolaizola/sunostudio/pkg/library"
	"github.com/igolaizola/sunostudio/pkg/suno"
	"github.com/peterbourgon/ff/ffyaml"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

const (
	name      = "sunostudio"
	envPrefix = "SUNOSTUDIO"
)

func New(version, commit, date string) *ffcli.Command {
	fs := flag.NewFlagSet(name, flag.ExitOnError)

	return &ffcli.Command{
		ShortUsage: name + " [flags] <subcommand>",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
		Subcommands: []*ffcli.Command{
			newVersionCommand(version, commit, date),
			newMigrateCommand(),
			newSettingCommand(),
			newPresetCommand(),
			newServeCommand(),
			newCreateCommand(),
			newUploadCommand(),
			newDownloadCommand(),
		},
	}
}

func newVersionCommand(version, commit, date string) *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: name + " version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if commit != "" {
				versionFields = append(versionFields, commit)
			}
			if date != "" {
				versionFields = append(versionFields, date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithEnvVarPrefix(envPrefix),
	}
}

func dbFlags(fs *flag.FlagSet, debug *bool, dbType, dbConn *string) {
	fs.BoolVar(debug, "debug", false, "debug mode")
	fs.StringVar(dbType, "db-type", "sqlite", "db type (sqlite, mysql, postgres)")
	fs.StringVar(dbConn, "db-conn", "sunostudio.db", "path for sqlite, dsn for mysql or postgres")
}

func fsFlags(fs *flag.FlagSet, fsType, fsConn *string) {
	fs.StringVar(fsType, "fs-type", "", "fs type (local, s3)")
	fs.StringVar(fsConn, "fs-conn", "", "path for local, key:secret@bucket.region for s3")
}

func remoteFlags(fs *flag.FlagSet, baseURL, proxy *string, wait *time.Duration) {
	fs.StringVar(baseURL, "base-url", suno.DefaultBaseURL, "remote api base url")
	fs.StringVar(proxy, "proxy", "", "proxy to use")
	fs.DurationVar(wait, "wait", 2*time.Second, "minimum time between remote calls")
}

func newMigrateCommand() *ffcli.Command {
	cmd := "migrate"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &migrate.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags]", name, cmd),
		Options:    options(),
		ShortHelp:  "create or update the database schema",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return migrate.Run(ctx, cfg)
		},
	}
}

func newSettingCommand() *ffcli.Command {
	cmd := "setting"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &setting.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	fs.StringVar(&cfg.APIKey, "api-key", "", "api key to store")
	fs.BoolVar(&cfg.Unset, "unset", false, "remove the stored api key")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags]", name, cmd),
		Options:    options(),
		ShortHelp:  "store the api key or list settings",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return setting.Run(ctx, os.Stdout, cfg)
		},
	}
}

func newPresetCommand() *ffcli.Command {
	cmd := "preset"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &preset.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	fs.StringVar(&cfg.Title, "title", "", "preset title (add)")
	fs.StringVar(&cfg.Prompt, "prompt", "", "preset style text (add)")
	fs.IntVar(&cfg.Index, "index", 0, "preset position (delete)")
	fs.StringVar(&cfg.File, "file", "", "yaml file (import, export)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags] <list|add|delete|import|export>", name, cmd),
		Options:    options(),
		ShortHelp:  "manage saved style presets",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) > 1 {
				return fmt.Errorf("too many arguments")
			}
			action := preset.ActionList
			if len(args) == 1 {
				action = preset.Action(args[0])
			}
			return preset.Run(ctx, os.Stdout, action, cfg)
		},
	}
}

func newServeCommand() *ffcli.Command {
	cmd := "serve"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &serve.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	fsFlags(fs, &cfg.FSType, &cfg.FSConn)
	remoteFlags(fs, &cfg.BaseURL, &cfg.Proxy, &cfg.Wait)
	fs.DurationVar(&cfg.PollInterval, "poll-interval", library.DefaultInterval, "time between status checks")
	fs.StringVar(&cfg.Addr, "addr", "localhost:8080", "address to listen on")
	fs.BoolVar(&cfg.Open, "open", false, "open the panel in the browser")
	fs.BoolVar(&cfg.Ngrok, "ngrok", false, "expose the panel through an ngrok tunnel")
	fsMapVar(fs, &cfg.Credentials, "credentials", nil, "basic auth credentials (semicolon separated) Example: user1:pass1;user2:pass2")
	fsMapVar(fs, &cfg.Volumes, "volumes", nil, "volumes to mount (semicolon separated) Example: ./web:/;./audio:/audio")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags]", name, cmd),
		Options:    options(),
		ShortHelp:  "serve the control panel api",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return serve.Serve(ctx, cfg)
		},
	}
}

func newCreateCommand() *ffcli.Command {
	cmd := "create"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &create.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	fsFlags(fs, &cfg.FSType, &cfg.FSConn)
	remoteFlags(fs, &cfg.BaseURL, &cfg.Proxy, &cfg.Wait)
	fs.DurationVar(&cfg.PollInterval, "poll-interval", library.DefaultInterval, "time between status checks")
	fs.DurationVar(&cfg.Timeout, "timeout", 10*time.Minute, "maximum time to wait for the task")

	fs.StringVar(&cfg.Mode, "mode", "simple", "mode (simple, custom, extend, cover)")
	fs.StringVar(&cfg.Model, "model", "", "model version")
	fs.StringVar(&cfg.Title, "title", "", "song title")
	fs.StringVar(&cfg.Tags, "style", "", "style tags")
	fs.StringVar(&cfg.Prompt, "lyrics", "", "lyrics")
	fs.StringVar(&cfg.Description, "description", "", "song description (simple)")
	fs.BoolVar(&cfg.Instrumental, "instrumental", false, "instrumental song")
	fs.StringVar(&cfg.Reference, "reference", "", "reference clip id (extend, cover)")
	fs.StringVar(&cfg.ContinueAt, "continue-at", "", "extend offset as m:ss")
	fs.IntVar(&cfg.Preset, "preset", -1, "preset position to apply to the style")
	fs.StringVar(&cfg.Format, "format", "mp3", "archived format (mp3, wav)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags]", name, cmd),
		Options:    options(),
		ShortHelp:  "create a song and wait for it",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return create.Run(ctx, os.Stdout, cfg)
		},
	}
}

func newUploadCommand() *ffcli.Command {
	cmd := "upload"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &upload.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	remoteFlags(fs, &cfg.BaseURL, &cfg.Proxy, &cfg.Wait)
	fs.DurationVar(&cfg.UploadWait, "upload-wait", 2*time.Second, "time between upload status checks")
	fs.IntVar(&cfg.UploadAttempts, "upload-attempts", 30, "maximum upload status checks")
	fs.StringVar(&cfg.Input, "input", "", "audio file to upload")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags]", name, cmd),
		Options:    options(),
		ShortHelp:  "upload an audio file as a reference clip",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return upload.Run(ctx, os.Stdout, cfg)
		},
	}
}

func newDownloadCommand() *ffcli.Command {
	cmd := "download"
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	_ = fs.String("config", "", "config file (optional)")

	cfg := &download.Config{}
	dbFlags(fs, &cfg.Debug, &cfg.DBType, &cfg.DBConn)
	fsFlags(fs, &cfg.FSType, &cfg.FSConn)
	remoteFlags(fs, &cfg.BaseURL, &cfg.Proxy, &cfg.Wait)
	fs.DurationVar(&cfg.Timeout, "timeout", 2*time.Minute, "http timeout")
	fs.IntVar(&cfg.Concurrency, "concurrency", 1, "number of parallel downloads")
	fs.StringVar(&cfg.Format, "format", "mp3", "audio format (mp3, wav)")

	return &ffcli.Command{
		Name:       cmd,
		ShortUsage: fmt.Sprintf("%s %s [flags] <clip id...>", name, cmd),
		Options:    options(),
		ShortHelp:  "archive clips into the file storage",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return download.Run(ctx, os.Stdout, cfg, args)
		},
	}
}

type mapValue struct {
	v *map[string]string
}

func (m *mapValue) String() string {
	if m.v == nil {
		return ""
	}
	return fmt.Sprintf("%v", map[string]string(*m.v))
}

func (m *mapValue) Set(value string) error {
	if m.v == nil {
		return errors.New("nil map reference")
	}
	pairs := strings.Split(value, ";")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid map entry: %s", pair)
		}
		(*m.v)[parts[0]] = parts[1]
	}
	return nil
}

func fsMapVar(fs *flag.FlagSet, p *map[string]string, name string, value map[string]string, usage string) {
	if value == nil {
		value = make(map[string]string)
	}
	*p = value
	fs.Var(&mapValue{p}, name, usage)
}
