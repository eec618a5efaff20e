// Package handling input and output files: FASTA sequences in, similarity
// matrices and plots out
package prep

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/evolbioinfo/goalign/io/fasta"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jsdoublel/guidetree/internal/seq"
	"github.com/jsdoublel/guidetree/internal/triangle"
)

var (
	ErrInvalidFile   = errors.New("invalid file")
	ErrInvalidFormat = errors.New("invalid format")
	ErrWritingFile   = errors.New("error writing file")
	ErrNoValues      = errors.New("no values to plot")

	plotFillColor = color.RGBA{R: 37, G: 150, B: 190, A: 255}
)

const (
	plotH = 4 * vg.Inch
	plotW = 6 * vg.Inch

	histBins = 40
)

// Reads unaligned sequences from a FASTA file
func ReadFasta(fastaFile string) ([]*seq.Sequence, error) {
	file, err := os.Open(fastaFile)
	if err != nil {
		return nil, fmt.Errorf("error opening %s, %w", fastaFile, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(fmt.Sprintf("could not close file %s, %s", fastaFile, err))
		}
	}()
	seqs, err := ParseFasta(file)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, fastaFile)
	}
	return seqs, nil
}

// Parses unaligned FASTA records; gap characters in the records are dropped
// when sequences are encoded
func ParseFasta(r io.Reader) ([]*seq.Sequence, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w, %s", ErrInvalidFile, err.Error())
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w, no sequences", ErrInvalidFile)
	}
	if data[0] != '>' {
		return nil, fmt.Errorf("%w, fasta input must start with '>'", ErrInvalidFormat)
	}
	if err := checkHeaders(data); err != nil {
		return nil, err
	}
	sb, err := fasta.NewParser(bytes.NewReader(data)).ParseUnalign()
	if err != nil {
		return nil, fmt.Errorf("%w, error parsing fasta: %s", ErrInvalidFormat, err.Error())
	}
	seqs := make([]*seq.Sequence, sb.NbSequences())
	for i := range seqs {
		name, _ := sb.GetSequenceNameById(i)
		residues, _ := sb.GetSequenceById(i)
		seqs[i] = seq.New(i, name, residues)
	}
	if len(seqs) == 0 {
		return nil, fmt.Errorf("%w, no sequences", ErrInvalidFile)
	}
	log.Printf("read %d sequences\n", len(seqs))
	return seqs, nil
}

// Rejects repeated sequence names, which the fasta parser would otherwise
// rename
func checkHeaders(data []byte) error {
	seen := make(map[string]bool)
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 || line[0] != '>' {
			continue
		}
		name := strings.TrimLeft(strings.TrimRight(string(line[1:]), "\r"), " ")
		if name == "" {
			return fmt.Errorf("%w, empty sequence name", ErrInvalidFormat)
		}
		if seen[name] {
			return fmt.Errorf("%w, duplicate sequence name %s", ErrInvalidFormat, name)
		}
		seen[name] = true
	}
	return nil
}

// Writes the full symmetric matrix as csv with a header row and column of
// sequence names. Diagonal cells are left empty.
func WriteMatrixCSV(m *triangle.Matrix[float64], names []string, w io.Writer) (err error) {
	n := m.N()
	if len(names) != n {
		panic(fmt.Sprintf("%d names for matrix of dimension %d", len(names), n))
	}
	writer := csv.NewWriter(w)
	defer func() {
		writer.Flush()
		if err == nil {
			if err = writer.Error(); err != nil {
				err = fmt.Errorf("%w, %s", ErrWritingFile, err)
			}
		} else if writer.Error() != nil {
			log.Printf("error when flushing output csv, %s", writer.Error())
		}
	}()
	header := make([]string, n+1)
	copy(header[1:], names)
	if err = writer.Write(header); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	row := make([]string, n+1)
	for i := range n {
		row[0] = names[i]
		for j := range n {
			if i == j {
				row[j+1] = ""
				continue
			}
			row[j+1] = strconv.FormatFloat(m.Get(i, j), 'g', -1, 64)
		}
		if err = writer.Write(row); err != nil {
			return fmt.Errorf("%w, %s", ErrWritingFile, err)
		}
	}
	return nil
}

func WriteMatrixCSVFile(m *triangle.Matrix[float64], names []string, file string) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	if err := WriteMatrixCSV(m, names, f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}

// Plots a histogram of the matrix values to <prefix>.png. Values equal to
// skip (the identical sequence sentinel) would dominate the axis and are left
// out.
func WriteSimilarityHistogram(m *triangle.Matrix[float64], skip float64, xLabel, prefix string) error {
	values := make(plotter.Values, 0, m.Len())
	for _, v := range m.Data() {
		if v != skip && !math.IsInf(v, 0) && !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return ErrNoValues
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d sequence pairs", len(values))
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Number of Pairs"
	hist, err := plotter.NewHist(values, min(histBins, len(values)))
	if err != nil {
		return err
	}
	hist.FillColor = plotFillColor
	p.Add(hist)
	if err := p.Save(plotW, plotH, fmt.Sprintf("%s.png", prefix)); err != nil {
		return fmt.Errorf("%w, %s", ErrWritingFile, err)
	}
	return nil
}
