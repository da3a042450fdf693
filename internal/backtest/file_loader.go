package backtest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"cascade-lab/internal/domain"
)

// parquetReadBatch is the row batch size for parquet reads.
const parquetReadBatch = 1024

// msEpochFloor is the threshold above which a numeric timestamp is assumed
// to be epoch milliseconds rather than seconds. Epoch seconds will not reach
// this value for tens of thousands of years.
const msEpochFloor = 1e12

// parquetRow mirrors domain.LiquidationRow in the on-disk parquet schema.
type parquetRow struct {
	Timestamp float64 `parquet:"name=timestamp, type=DOUBLE"`
	Exchange  string  `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol    string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side      string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quantity  float64 `parquet:"name=quantity, type=DOUBLE"`
	USDValue  float64 `parquet:"name=usd_value, type=DOUBLE"`
	Price     float64 `parquet:"name=price, type=DOUBLE"`
}

// FileLoader reads canonical rows from a directory of parquet and csv files
// and concatenates them. Files are processed in lexical order; rows are
// re-sorted by timestamp afterward, so file naming does not have to encode
// time order.
type FileLoader struct {
	dir string
}

// NewFileLoader creates a loader over a directory of .parquet/.csv files.
func NewFileLoader(dir string) *FileLoader {
	return &FileLoader{dir: dir}
}

var _ Loader = (*FileLoader)(nil)

// Name identifies the loader in logs and reports.
func (l *FileLoader) Name() string {
	return "file:" + l.dir
}

// Load reads every supported file under the directory and returns rows
// within r, sorted by timestamp ASC.
func (l *FileLoader) Load(_ context.Context, r Range) ([]domain.LiquidationRow, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read dir %s: %v", ErrSourceUnreachable, l.dir, err)
	}

	var rows []domain.LiquidationRow
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		var fileRows []domain.LiquidationRow
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".parquet":
			fileRows, err = readParquetFile(path)
		case ".csv":
			fileRows, err = readCSVFile(path)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		for _, row := range fileRows {
			if r.Contains(row.Timestamp) {
				rows = append(rows, row)
			}
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, l.dir)
	}
	sortRows(rows)
	return rows, nil
}

func readParquetFile(path string) ([]domain.LiquidationRow, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open parquet: %v", ErrSourceUnreachable, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(parquetRow), 4)
	if err != nil {
		return nil, fmt.Errorf("%w: parquet schema: %v", ErrMissingColumn, err)
	}
	defer pr.ReadStop()

	total := int(pr.GetNumRows())
	rows := make([]domain.LiquidationRow, 0, total)
	for read := 0; read < total; {
		n := parquetReadBatch
		if total-read < n {
			n = total - read
		}
		batch := make([]parquetRow, n)
		if err := pr.Read(&batch); err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		for _, p := range batch {
			ts, err := normalizeTimestamp(p.Timestamp)
			if err != nil {
				return nil, err
			}
			rows = append(rows, domain.LiquidationRow{
				Timestamp: ts,
				Exchange:  domain.Exchange(p.Exchange),
				Symbol:    p.Symbol,
				Side:      p.Side,
				Quantity:  p.Quantity,
				USDValue:  p.USDValue,
				Price:     p.Price,
			})
		}
		read += n
	}
	return rows, nil
}

func readCSVFile(path string) ([]domain.LiquidationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open csv: %v", ErrSourceUnreachable, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read csv header: %v", ErrSourceUnreachable, err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range domain.RequiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows []domain.LiquidationRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		ts, err := parseTimestamp(record[index["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		quantity, err := parseField(record[index["quantity"]], "quantity", line)
		if err != nil {
			return nil, err
		}
		usd, err := parseField(record[index["usd_value"]], "usd_value", line)
		if err != nil {
			return nil, err
		}
		price, err := parseField(record[index["price"]], "price", line)
		if err != nil {
			return nil, err
		}

		rows = append(rows, domain.LiquidationRow{
			Timestamp: ts,
			Exchange:  domain.Exchange(strings.TrimSpace(record[index["exchange"]])),
			Symbol:    strings.TrimSpace(record[index["symbol"]]),
			Side:      strings.TrimSpace(record[index["side"]]),
			Quantity:  quantity,
			USDValue:  usd,
			Price:     price,
		})
	}
	return rows, nil
}

// parseTimestamp accepts numeric epoch seconds or milliseconds, or an
// RFC 3339 string, and normalizes to epoch seconds.
func parseTimestamp(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return normalizeTimestamp(v)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return domain.UnixSeconds(t), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, raw)
}

func normalizeTimestamp(v float64) (float64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: %v", ErrBadTimestamp, v)
	}
	if v >= msEpochFloor {
		return v / 1000, nil
	}
	return v, nil
}

func parseField(raw, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: parse %s: %w", line, name, err)
	}
	return v, nil
}
