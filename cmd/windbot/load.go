package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arshiii08/windbot/internal/config"
	"github.com/arshiii08/windbot/internal/storage"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load turbine feature and error-log CSV files into local storage",
	Long: `Load turbine feature and error-log CSV files into local storage.

Examples:
  windbot load --features ./wtg_features.csv
  windbot load --features ./wtg_features.csv --errors ./error_logs.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		featuresPath, _ := cmd.Flags().GetString("features")
		errorsPath, _ := cmd.Flags().GetString("errors")

		if featuresPath == "" && errorsPath == "" {
			return fmt.Errorf("one of --features or --errors is required")
		}

		cfg, err := config.LoadOffline()
		if err != nil {
			return err
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		var g errgroup.Group
		var featureCount, errorCount int

		if featuresPath != "" {
			g.Go(func() error {
				n, err := loadFeatures(store, featuresPath)
				if err != nil {
					return fmt.Errorf("loading features from %s: %w", featuresPath, err)
				}
				featureCount = n
				return nil
			})
		}
		if errorsPath != "" {
			g.Go(func() error {
				n, err := loadErrorLogs(store, errorsPath)
				if err != nil {
					return fmt.Errorf("loading error logs from %s: %w", errorsPath, err)
				}
				errorCount = n
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		if featuresPath != "" {
			printSuccess("Loaded %d feature rows", featureCount)
		}
		if errorsPath != "" {
			printSuccess("Loaded %d error log entries", errorCount)
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().String("features", "", "path to a wtg_features CSV file")
	loadCmd.Flags().String("errors", "", "path to an error_logs CSV file")
}

// loadFeatures reads a features CSV whose header must be turbine_id, log_date
// followed by the feature columns in schema order.
func loadFeatures(store *storage.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	if err := checkFeatureHeader(header); err != nil {
		return 0, err
	}

	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("reading row %d: %w", count+2, err)
		}

		values := make([]float64, len(storage.FeatureColumns))
		for i, raw := range record[2:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return count, fmt.Errorf("row %d, column %s: %w", count+2, storage.FeatureColumns[i], err)
			}
			values[i] = v
		}

		row := storage.FeatureRow{
			TurbineID: strings.TrimSpace(record[0]),
			LogDate:   strings.TrimSpace(record[1]),
			Values:    values,
		}
		if err := store.InsertFeatureRow(row); err != nil {
			return count, fmt.Errorf("inserting row %d: %w", count+2, err)
		}
		count++
	}
	return count, nil
}

func checkFeatureHeader(header []string) error {
	want := append([]string{"turbine_id", "log_date"}, storage.FeatureColumns...)
	if len(header) != len(want) {
		return fmt.Errorf("header has %d columns, want %d", len(header), len(want))
	}
	for i, col := range header {
		if strings.TrimSpace(col) != want[i] {
			return fmt.Errorf("header column %d is %q, want %q", i+1, col, want[i])
		}
	}
	return nil
}

// loadErrorLogs reads an error_logs CSV with columns turbine_id, error_time,
// alarm_code, short_description, duration.
func loadErrorLogs(store *storage.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	want := []string{"turbine_id", "error_time", "alarm_code", "short_description", "duration"}
	if len(header) != len(want) {
		return 0, fmt.Errorf("header has %d columns, want %d", len(header), len(want))
	}
	for i, col := range header {
		if strings.TrimSpace(col) != want[i] {
			return 0, fmt.Errorf("header column %d is %q, want %q", i+1, col, want[i])
		}
	}

	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("reading row %d: %w", count+2, err)
		}

		errorTime, err := parseErrorTime(strings.TrimSpace(record[1]))
		if err != nil {
			return count, fmt.Errorf("row %d, column error_time: %w", count+2, err)
		}

		l := storage.ErrorLog{
			TurbineID:        strings.TrimSpace(record[0]),
			ErrorTime:        errorTime,
			AlarmCode:        strings.TrimSpace(record[2]),
			ShortDescription: strings.TrimSpace(record[3]),
			Duration:         strings.TrimSpace(record[4]),
		}
		if err := store.InsertErrorLog(l); err != nil {
			return count, fmt.Errorf("inserting row %d: %w", count+2, err)
		}
		count++
	}
	return count, nil
}

// parseErrorTime accepts RFC 3339 or plain "YYYY-MM-DD HH:MM:SS" timestamps,
// the two formats turbine SCADA exports commonly produce.
func parseErrorTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}
