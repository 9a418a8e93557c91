package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"tululu_parser/internal/db"
	"tululu_parser/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Отдаёт каталог скачанных книг по HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.SQLitePath == "" {
			return fmt.Errorf("каталог не настроен: задайте --db или SQLITE_PATH")
		}
		if serveAddr != "" {
			cfg.HTTPAddr = serveAddr
		}

		store, err := db.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           httpapi.New(store, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Infow("HTTP API запущен", "addr", cfg.HTTPAddr, "sqlite", cfg.SQLitePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка HTTP API: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Адрес HTTP API (по умолчанию HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
