// Command assetcache-benchstat parses a benchmark log produced by
// benchmarks/ and prints its values in CSV format.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strconv"

	"golang.org/x/perf/benchstat"
)

func main() {
	path := flag.String("log", ".assetcache_bench_log", "benchmark log file to parse")
	flag.Parse()

	c := &benchstat.Collection{
		Alpha:     0.05,
		DeltaTest: benchstat.UTest,
		Order:     benchstat.ByName,
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err := c.AddFile(*path, f); err != nil {
		log.Fatal(err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	var scratch []byte
	for k, v := range c.Metrics {
		w.WriteString(k.Benchmark)
		for _, v := range v.Values {
			w.WriteByte(',')
			scratch = strconv.AppendFloat(scratch[:0], v, 'f', 0, 64)
			w.Write(scratch)
		}
		w.WriteByte('\n')
	}
}
