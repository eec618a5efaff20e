/*
guidetree builds a guide tree for multiple sequence alignment from the
pairwise LCS similarity of unaligned sequences.

usage: guidetree [ -c <clustering> | -e <exp> | -n <nprocs> | -m <csv> | -p <prefix> | -h | -v ] <fasta>

positional arguments:

	<fasta>	unaligned sequences in fasta format

flags:

	-c clustering
	  	clustering method [ sl | upgma ] (default sl)
	-e float
	  	indel exponent applied to similarities (default 0)
	-h	prints this message and exits
	-m file
	  	write similarity matrix to csv file
	-n int
	  	number of parallel processes
	-p prefix
	  	write histogram of matrix values to <prefix>.png
	-v	prints version number and exits

example:

	guidetree -c upgma -e 1 seqs.fasta > guide.nwk 2> log.txt
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/jsdoublel/guidetree/internal/cluster"
	"github.com/jsdoublel/guidetree/internal/guide"
	"github.com/jsdoublel/guidetree/internal/prep"
	"github.com/jsdoublel/guidetree/internal/similarity"
)

const (
	Version    = "v0.1.0"
	ErrMessage = "guidetree encountered an error ::"
)

type args struct {
	clusterer  cluster.Method // clustering method
	indelExp   float64        // exponent of the indel count
	fastaFile  string         // input sequences
	matrixFile string         // optional csv output
	plotPrefix string         // optional histogram output
	nprocs     int            // number of parallel processes
}

func setNProcs(nprocs int) int {
	maxProcs := runtime.GOMAXPROCS(0)
	switch {
	case nprocs > maxProcs:
		log.Printf("%d is greater than available processes (%d); limit set to %d\n", nprocs, maxProcs, maxProcs)
		return maxProcs
	case nprocs <= 0:
		log.Printf("number of processes not set; defaulting to %d processes\n", maxProcs)
		return maxProcs
	default:
		return nprocs
	}
}

func parseArgs() args {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr,
			"usage: guidetree [ -c <clustering> | -e <exp> | -n <nprocs> | -m <csv> | -p <prefix> | -h | -v ] <fasta>\n",
			"\n",
			"positional arguments:\n\n",
			"  <fasta>\tunaligned sequences in fasta format\n",
			"\n",
			"flags:\n\n",
		)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr,
			"\n",
			"example:\n\n",
			"\tguidetree -c upgma -e 1 seqs.fasta > guide.nwk 2> log.txt\n",
		)
	}
	clusterer := cluster.Method("sl")
	flag.Var(&clusterer, "c", "`clustering` method [ sl | upgma ]")
	indelExp := flag.Float64("e", 0, "indel exponent applied to similarities")
	matrixFile := flag.String("m", "", "write similarity matrix to csv `file`")
	plotPrefix := flag.String("p", "", "write histogram of matrix values to <`prefix`>.png")
	help := flag.Bool("h", false, "prints this message and exits")
	ver := flag.Bool("v", false, "prints version number and exits")
	nprocs := flag.Int("n", 0, "number of parallel processes")
	flag.Parse()
	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if *ver {
		fmt.Printf("guidetree version %s\n", Version)
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		parserError("one positional argument required: <fasta>")
	}
	if *indelExp < 0 {
		parserError(fmt.Sprintf("indel exponent must be non-negative, but is %g", *indelExp))
	}
	return args{
		clusterer:  clusterer,
		indelExp:   *indelExp,
		fastaFile:  flag.Arg(0),
		matrixFile: *matrixFile,
		plotPrefix: *plotPrefix,
		nprocs:     setNProcs(*nprocs),
	}
}

// prints message, usage, and exits (status code 1)
func parserError(message string) {
	fmt.Fprintln(os.Stderr, message)
	flag.Usage()
	os.Exit(1)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("guidetree version %s", Version)
	args := parseArgs()
	seqs, err := prep.ReadFasta(args.fastaFile)
	if err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
	clusterer := args.clusterer.Clusterer()
	gen, err := guide.NewGenerator(clusterer,
		similarity.WithIndelExp(args.indelExp),
		similarity.WithNProcs(args.nprocs),
	)
	if err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
	log.Printf("running %s clustering...", args.clusterer)
	tre, err := gen.GenerateTree(context.Background(), seqs)
	if err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
	names := make([]string, len(seqs))
	for i, s := range seqs {
		names[i] = s.Name
	}
	if args.matrixFile != "" {
		if err := prep.WriteMatrixCSVFile(gen.Matrix(), names, args.matrixFile); err != nil {
			log.Fatalf("%s %s\n", ErrMessage, err)
		}
	}
	if args.plotPrefix != "" {
		transform := clusterer.Transform()
		err := prep.WriteSimilarityHistogram(gen.Matrix(), transform.Sentinel(), fmt.Sprintf("Similarity (%s)", transform), args.plotPrefix)
		if err != nil {
			log.Printf("no histogram written: %s", err)
		}
	}
	nwk, err := tre.Newick(names)
	if err != nil {
		log.Fatalf("%s %s\n", ErrMessage, err)
	}
	fmt.Println(nwk)
}
