// dumpinfo.go - Inspect a SID register capture (FDIS or raw 4-byte)
//
// Usage: go run tools/dumpinfo.go [-raw4] capture.bin

package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
)

const (
	fdisMagic    = 0x53494446
	sidClockHz   = 985248.0
	cmdFrameMark = 0xFFFF
)

func main() {
	raw := flag.Bool("raw4", false, "Input is a raw 4-byte event capture")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: dumpinfo [-raw4] capture.bin")
		os.Exit(1)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()
	r := bufio.NewReaderSize(f, 64*1024)

	var frames, events, commands uint64
	var cycles uint64
	regHisto := make(map[uint8]uint64)

	if *raw {
		var rec [4]byte
		for {
			if _, err := io.ReadFull(r, rec[:]); err != nil {
				break
			}
			events++
			cycles += uint64(rec[0]) | uint64(rec[1])<<8
			regHisto[rec[2]&0x1F]++
		}
	} else {
		var hdr [10]byte
		var rec [6]byte
		for {
			if _, err := io.ReadFull(r, hdr[:]); err != nil {
				break
			}
			if binary.LittleEndian.Uint32(hdr[0:4]) != fdisMagic {
				fmt.Fprintf(os.Stderr, "bad magic at frame %d, stopping\n", frames)
				break
			}
			count := binary.LittleEndian.Uint16(hdr[4:6])
			if count == cmdFrameMark {
				var cmd [4]byte
				if _, err := io.ReadFull(r, cmd[:]); err != nil {
					break
				}
				commands++
				continue
			}
			frames++
			truncated := false
			for i := 0; i < int(count); i++ {
				if _, err := io.ReadFull(r, rec[:]); err != nil {
					truncated = true
					break
				}
				events++
				cycles += uint64(binary.LittleEndian.Uint32(rec[2:6]))
				regHisto[rec[0]&0x1F]++
			}
			if truncated {
				fmt.Fprintf(os.Stderr, "truncated frame %d\n", frames)
				break
			}
		}
	}

	fmt.Printf("frames   : %d\n", frames)
	fmt.Printf("commands : %d\n", commands)
	fmt.Printf("events   : %d\n", events)
	fmt.Printf("duration : %.2fs of SID time\n", float64(cycles)/sidClockHz)
	fmt.Println("register histogram:")
	for reg := uint8(0); reg < 0x20; reg++ {
		if regHisto[reg] > 0 {
			fmt.Printf("  $%02X: %d\n", reg, regHisto[reg])
		}
	}
}
