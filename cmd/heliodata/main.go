package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitInvalidArgs  = 2
	ExitStorageError = 3
	ExitTableCorrupt = 4
	ExitInterrupted  = 5
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "sdo-aia":
		return runSDOAIA(cmdArgs)
	case "sdo-hmi":
		return runSDOHMI(cmdArgs)
	case "soho-eit":
		return runSOHOEIT(cmdArgs)
	case "stereo-euvi":
		return runSTEREOEUVI(cmdArgs)
	case "solo-eui":
		return runSoloEUI(cmdArgs)
	case "solo-phi":
		return runSoloPHI(cmdArgs)
	case "status":
		return runStatus(cmdArgs)
	case "version":
		fmt.Println("heliodata " + version)
		return ExitSuccess
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: heliodata <command> [options]

Commands:
  sdo-aia      Reconcile SDO/AIA EUV images from the JSOC DRMS archive
  sdo-hmi      Reconcile SDO/HMI segments from the JSOC DRMS archive
  soho-eit     Reconcile SOHO/EIT images via a VSO gateway (SDAC)
  stereo-euvi  Reconcile STEREO/SECCHI-EUVI images via a VSO gateway (SSC)
  solo-eui     Reconcile Solar Orbiter EUI products from SOAR
  solo-phi     Reconcile Solar Orbiter PHI products from SOAR
  status       Print the expectation table summary for a mission
  version      Print the version

Each mission keeps an expectation table at <root>/<mission>/expectations.json
and fetches only what the table does not already account for; rerunning the
same command resumes where the last run stopped.

Run 'heliodata <command> -h' for command-specific help.`)
}
