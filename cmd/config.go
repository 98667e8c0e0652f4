// Copyright 2025-2026 肖其顿 (XIAO QI DUN)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xiaoqidun/inkpdf"
)

// Config 命令行配置
// 来源优先级: 命令行参数, INKPDF_ 环境变量(.env), inkpdf.yml
type Config struct {
	Backend       string  `mapstructure:"backend"`
	DataDir       string  `mapstructure:"data-dir"`
	DSN           string  `mapstructure:"dsn"`
	RedisAddr     string  `mapstructure:"redis-addr"`
	RedisPassword string  `mapstructure:"redis-password"`
	RedisDB       int     `mapstructure:"redis-db"`
	Scale         float64 `mapstructure:"scale"`
	Compression   string  `mapstructure:"compression"`
	Pdftoppm      string  `mapstructure:"pdftoppm"`
	DarkTone      string  `mapstructure:"dark-tone"`
}

// initConfig 读取环境变量与配置文件
func initConfig() {
	viper.SetEnvPrefix("INKPDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetConfigName("inkpdf")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logrus.Warnf("error reading config file: %v", err)
		}
	}
}

// loadConfig 解析配置
func loadConfig() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// openStore 按配置打开存储
// 返回: *inkpdf.Store 存储, func() 关闭函数, error 错误信息
func openStore(cfg Config) (*inkpdf.Store, func(), error) {
	compression, err := inkpdf.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}
	var backend inkpdf.Backend
	switch cfg.Backend {
	case "memory":
		backend = inkpdf.NewMemoryBackend()
	case "file":
		backend, err = inkpdf.NewFileBackend(cfg.DataDir)
	case "sqlite", "postgres":
		dsn := cfg.DSN
		if dsn == "" && cfg.Backend == "sqlite" {
			dsn = filepath.Join(cfg.DataDir, "inkpdf.db")
		}
		db, oerr := inkpdf.OpenGorm(cfg.Backend, dsn)
		if oerr != nil {
			return nil, nil, oerr
		}
		if sqlDB, derr := db.DB(); derr == nil {
			closer = func() { _ = sqlDB.Close() }
		}
		backend, err = inkpdf.NewGormBackend(db)
	case "redis":
		client := inkpdf.DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		closer = func() { _ = client.Close() }
		backend = inkpdf.NewRedisBackend(client, "")
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		closer()
		return nil, nil, err
	}
	store, err := inkpdf.NewStore(backend, inkpdf.WithCompression(compression))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return store, closer, nil
}

// newRenderer 按配置创建渲染器
func newRenderer(cfg Config) (*inkpdf.Renderer, error) {
	tone, err := inkpdf.ParseColor(cfg.DarkTone)
	if err != nil {
		return nil, err
	}
	return inkpdf.NewRenderer(
		inkpdf.WithScale(cfg.Scale),
		inkpdf.WithDarkTone(tone),
		inkpdf.WithRasterizer(inkpdf.PopplerRasterizer{Path: cfg.Pdftoppm}),
	), nil
}

// env 命令运行环境
type env struct {
	cfg      Config
	store    *inkpdf.Store
	renderer *inkpdf.Renderer
	close    func()
}

// setup 加载配置并打开存储与渲染器
func setup() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	renderer, err := newRenderer(cfg)
	if err != nil {
		return nil, err
	}
	store, closer, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, store: store, renderer: renderer, close: closer}, nil
}

// loadSource 读取本地源文档
func loadSource(ctx context.Context, path string) (*inkpdf.Source, error) {
	return inkpdf.LocalSourceProvider{}.Source(ctx, inkpdf.SourceRef(path))
}

// bindDocumentFlags 绑定文档标识参数
func bindDocumentFlags(command *cobra.Command) {
	command.Flags().StringP("doc", "d", "", "document id")
	command.Flags().String("parent", "", "parent document id of a sub-document")
	command.Flags().Int("ordinal", -1, "ordinal of a sub-document within --parent")
}

// documentID 解析 --doc 或 --parent/--ordinal
func documentID(cmd *cobra.Command) (inkpdf.DocumentID, error) {
	doc, _ := cmd.Flags().GetString("doc")
	parent, _ := cmd.Flags().GetString("parent")
	ordinal, _ := cmd.Flags().GetInt("ordinal")
	switch {
	case doc != "":
		return uuid.Parse(doc)
	case parent != "" && ordinal >= 0:
		p, err := uuid.Parse(parent)
		if err != nil {
			return inkpdf.DocumentID{}, err
		}
		return inkpdf.SubDocumentKey{Parent: p, Ordinal: ordinal}.ID(), nil
	}
	return inkpdf.DocumentID{}, errors.New("missing: --doc or --parent with --ordinal")
}

// checkMissingFlags 检查必填参数
func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missing, provided []string
	for _, required := range flags {
		f := cmd.Flag(required)
		if f == nil || !f.Changed {
			missing = append(missing, "--"+required)
			continue
		}
		provided = append(provided, fmt.Sprintf("--%s=%s", required, f.Value.String()))
	}
	if len(missing) == 0 {
		return false
	}
	color.Red("missing: %s\n", strings.Join(missing, " "))
	if len(provided) > 0 {
		color.Green("provided: %s\n", strings.Join(provided, " "))
	}
	cmd.Println("")
	_ = cmd.Usage()
	return true
}
