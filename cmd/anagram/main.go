// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command anagram scores, for every line of a dataset file, the
// highest-value word from a word list that can be built as a sub-anagram
// of that line: every letter the word uses must be available somewhere in
// the line, counting repeats. Word value follows Scrabble-style
// per-letter point values. The search for a given line stops once a
// configurable number of matching words has been seen, trading exhaustive
// correctness for a bound on worst-case latency.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
)

const alphabetSize = 26

// letterScores are Scrabble-style point values indexed by letter - 'a'.
// They are not the official Scrabble tile values (for example 'q' and 'z'
// score 4 here).
var letterScores = [alphabetSize]int{
	1, 3, 2, 2, 1, 3, 3, 1, 1, 4, 4, 2, 2, 1, 1, 3, 4, 1, 1, 1, 2, 3, 3, 4, 3, 4,
}

type occurrence [alphabetSize]int

func buildOccurrence(word string) occurrence {
	var occ occurrence
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c < 'a' || c > 'z' {
			continue
		}
		occ[c-'a']++
	}
	return occ
}

// subsetOf reports whether every letter in sub appears in super at least as
// often, i.e. sub can be built out of super's letters.
func (sub occurrence) subsetOf(super occurrence) bool {
	for i := 0; i < alphabetSize; i++ {
		if super[i] < sub[i] {
			return false
		}
	}
	return true
}

func score(word string) int {
	total := 0
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c < 'a' || c > 'z' {
			continue
		}
		total += letterScores[c-'a']
	}
	return total
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// bestSubAnagram returns the highest-scoring word that can be formed from
// line's letters among the first threshold matches the search examines, in
// the order of words (longest first). It returns "" if no word matches.
func bestSubAnagram(line string, words []string, wordOccurrences []occurrence, threshold int) string {
	dataOcc := buildOccurrence(line)

	var bestWord string
	bestScore := 0
	matched := 0
	for i, word := range words {
		if !wordOccurrences[i].subsetOf(dataOcc) {
			continue
		}
		if s := score(word); s > bestScore {
			bestScore = s
			bestWord = word
		}
		matched++
		if matched >= threshold {
			break
		}
	}
	return bestWord
}

func run(wordFile, datasetFile string, threshold int) error {
	words, err := readLines(wordFile)
	if err != nil {
		return fmt.Errorf("reading word file: %w", err)
	}
	// Search longer words first: a longer match is more likely to carry a
	// higher score, so trying them first gets a good answer before the
	// threshold cuts the search off.
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	wordOccurrences := make([]occurrence, len(words))
	for i, w := range words {
		wordOccurrences[i] = buildOccurrence(w)
	}

	dataset, err := readLines(datasetFile)
	if err != nil {
		return fmt.Errorf("reading dataset file: %w", err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, line := range dataset {
		fmt.Fprintln(w, bestSubAnagram(line, words, wordOccurrences, threshold))
	}
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s word_file dataset_file threshold\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(1)
	}

	wordFile := flag.Arg(0)
	datasetFile := flag.Arg(1)
	var threshold int
	if _, err := fmt.Sscanf(flag.Arg(2), "%d", &threshold); err != nil || threshold <= 0 {
		log.Fatalf("invalid threshold %q", flag.Arg(2))
	}

	if err := run(wordFile, datasetFile, threshold); err != nil {
		log.Fatal(err)
	}
}
