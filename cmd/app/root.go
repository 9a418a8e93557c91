package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tululu_parser/internal/config"
	"tululu_parser/internal/db"
	"tululu_parser/internal/network"
	"tululu_parser/internal/parser"
	"tululu_parser/internal/pipeline"
	"tululu_parser/internal/service"
	"tululu_parser/internal/telegram"
)

var (
	cfg    *config.Config
	logger *zap.SugaredLogger

	verbose    bool
	startID    int
	endID      int
	destFolder string
	skipText   bool
	skipImages bool
	workers    int
	insecure   bool
	dbPath     string
	progress   bool
)

var rootCmd = &cobra.Command{
	Use:           "tululu",
	Short:         "Скачивает книги и обложки с tululu.org по диапазону ID",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("ошибка конфигурации: %w", err)
		}

		logger, err = newLogger(verbose)
		if err != nil {
			return fmt.Errorf("ошибка логгера: %w", err)
		}

		applyFlags(cmd)
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runDownload,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Подробный лог")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Путь к SQLite-каталогу (по умолчанию SQLITE_PATH)")

	flags := rootCmd.Flags()
	flags.IntVarP(&startID, "start_id", "s", 1, "Начальный индекс книги из диапазона")
	flags.IntVarP(&endID, "end_id", "e", 10, "Конечный индекс книги из диапазона")
	flags.StringVar(&destFolder, "dest_folder", "", "Папка для книг и обложек (по умолчанию DEST_FOLDER)")
	flags.BoolVar(&skipText, "skip_txt", false, "Не скачивать тексты")
	flags.BoolVar(&skipImages, "skip_imgs", false, "Не скачивать обложки")
	flags.IntVar(&workers, "workers", 0, "Сколько книг качать одновременно (по умолчанию WORKERS)")
	flags.BoolVar(&insecure, "insecure", false, "Не проверять TLS-сертификаты")
	flags.BoolVar(&progress, "progress", false, "Показывать прогресс в stderr")
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("dest_folder") {
		cfg.DestFolder = destFolder
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if insecure {
		cfg.VerifyCertificates = false
	}
	if dbPath != "" {
		cfg.SQLitePath = dbPath
	}
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	var (
		raw *zap.Logger
		err error
	)
	if verbose {
		raw, err = zap.NewDevelopment()
	} else {
		raw, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return raw.Sugar(), nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	httpClient, err := network.NewClient(network.Options{
		ProxyAddr:          cfg.TorProxyAddr,
		InsecureSkipVerify: !cfg.VerifyCertificates,
		Timeout:            cfg.HTTPTimeout,
	})
	if err != nil {
		return err
	}

	adapter, err := parser.NewTululuAdapter(cfg.LibraryURL)
	if err != nil {
		return err
	}
	library := service.NewLibraryClient(httpClient, adapter, cfg.UserAgent)

	var catalog pipeline.Catalog
	if cfg.SQLitePath != "" {
		store, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		catalog = store
		logger.Infow("каталог включён", "sqlite", cfg.SQLitePath)
	}

	opts := pipeline.Options{
		BooksDir:   cfg.BooksPath(),
		ImagesDir:  cfg.ImagesPath(),
		SkipText:   skipText,
		SkipImages: skipImages,
		Workers:    cfg.Workers,
	}
	if progress {
		opts.Progress = os.Stderr
	}

	logger.Infow("старт", "library", cfg.LibraryURL, "start_id", startID, "end_id", endID, "workers", cfg.Workers)

	report, runErr := pipeline.NewRunner(library, catalog, opts, logger).Run(ctx, startID, endID)
	for _, path := range report.Paths() {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}

	logger.Infow("готово", "downloaded", len(report.Downloaded), "skipped", len(report.Skipped), "failed", len(report.Failed))

	if cfg.TelegramEnabled() {
		notifier, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Warnw("telegram недоступен", "error", err)
		} else if err := notifier.NotifyReport(startID, endID, report, runErr); err != nil {
			logger.Warnw("отчёт в telegram не отправлен", "error", err)
		}
	}

	return runErr
}
