package core

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"
)

// ============================================================================
// Fixtures
// ============================================================================

// generateEquipmentCSV builds a CSV with n data rows, cycling through the
// known equipment types.
func generateEquipmentCSV(n int) []byte {
	var buf bytes.Buffer
	buf.WriteString("Equipment Name,Type,Flowrate,Pressure,Temperature\n")
	for i := 0; i < n; i++ {
		t := KnownTypes[i%len(KnownTypes)]
		fmt.Fprintf(&buf, "Unit-%d,%s,%.1f,%.2f,%.1f\n", i, t, 50+float64(i%200), 1+float64(i%40)/4, 60+float64(i%90))
	}
	return buf.Bytes()
}

func generateRecords(n int) []EquipmentRecord {
	records := make([]EquipmentRecord, n)
	for i := range records {
		records[i] = EquipmentRecord{
			Name:        fmt.Sprintf("Unit-%d", i),
			Type:        string(KnownTypes[i%len(KnownTypes)]),
			Flowrate:    50 + float64(i%200),
			Pressure:    1 + float64(i%40)/4,
			Temperature: 60 + float64(i%90),
		}
	}
	return records
}

// ============================================================================
// Ingestion Benchmarks
// ============================================================================

// BenchmarkParseEquipmentCSV benchmarks full ingestion of a typical file.
func BenchmarkParseEquipmentCSV(b *testing.B) {
	for _, n := range []int{100, 10_000} {
		data := generateEquipmentCSV(n)
		b.Run(fmt.Sprintf("rows=%d", n), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := ParseEquipmentCSV(bytes.NewReader(data), IngestOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkParseEquipmentCSV_NullHeavy benchmarks a file where most rows
// are dropped for missing values.
func BenchmarkParseEquipmentCSV_NullHeavy(b *testing.B) {
	var buf bytes.Buffer
	buf.WriteString("Equipment Name,Type,Flowrate,Pressure,Temperature\n")
	for i := 0; i < 5000; i++ {
		if i%10 == 0 {
			fmt.Fprintf(&buf, "Unit-%d,Pump,1,2,3\n", i)
		} else {
			fmt.Fprintf(&buf, "Unit-%d,Pump,NA,,3\n", i)
		}
	}
	data := buf.Bytes()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ParseEquipmentCSV(bytes.NewReader(data), IngestOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWrapForIngest benchmarks BOM stripping and UTF-8 validation alone.
func BenchmarkWrapForIngest(b *testing.B) {
	data := append([]byte("\xef\xbb\xbf"), generateEquipmentCSV(10_000)...)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, _ := WrapForIngest(bytes.NewReader(data))
		if _, err := io.Copy(io.Discard, r); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Validation Benchmarks
// ============================================================================

// BenchmarkValidateHeaders benchmarks header checking with extra columns.
func BenchmarkValidateHeaders(b *testing.B) {
	header := []string{"Site", "Equipment Name", "Type", "Flowrate", "Pressure", "Temperature", "Notes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateHeaders(header); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIsNullCell benchmarks null detection over common cell values.
func BenchmarkIsNullCell(b *testing.B) {
	cells := []string{"", "NA", "Pump-1", "120.5", "null", strings.Repeat("x", 40)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			IsNullCell(c)
		}
	}
}

// BenchmarkParseNumber benchmarks numeric coercion.
func BenchmarkParseNumber(b *testing.B) {
	values := []string{"120", "5.25", "-3.5e2", "0.001"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, v := range values {
			if _, err := ParseNumber(v); err != nil {
				b.Fatal(err)
			}
		}
	}
}

// ============================================================================
// Aggregation Benchmarks
// ============================================================================

// BenchmarkSummarize benchmarks statistics over increasingly large sets.
func BenchmarkSummarize(b *testing.B) {
	for _, n := range []int{10, 1_000, 100_000} {
		records := generateRecords(n)
		b.Run(fmt.Sprintf("records=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				Summarize(records)
			}
		})
	}
}
