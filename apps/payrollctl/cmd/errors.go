package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/quatton/paydesk/pkg/payroll"
	"github.com/quatton/paydesk/pkg/psdk/perr"
)

// exitIfSdkError inspects errors returned from the SDK and emits user-friendly
// guidance before exiting. Non-SDK errors fall back to log.Fatalf.
func exitIfSdkError(err error) {
	if err == nil {
		return
	}

	var derr *payroll.DecodeError
	if errors.As(err, &derr) {
		fmt.Fprintln(os.Stderr, "❌ commit payload rejected:")
		for _, p := range derr.Problems {
			fmt.Fprintf(os.Stderr, "   - %s\n", p)
		}
		os.Exit(1)
	}

	var verrs payroll.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for f := range verrs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		fmt.Fprintln(os.Stderr, "❌ schedule rejected:")
		for _, f := range fields {
			fmt.Fprintf(os.Stderr, "   - %s: %s\n", f, verrs[f])
		}
		os.Exit(1)
	}

	switch {
	case perr.IsCode(err, perr.CodeRefreshFailed):
		log.Fatalf("session expired and could not be refreshed: run 'payrollctl auth login' (%v)", err)
	case perr.IsCode(err, perr.CodeUnauthorized):
		log.Fatalf("authentication required: run 'payrollctl auth login' (%v)", err)
	case perr.IsCode(err, perr.CodeInvalidInput):
		log.Fatalf("invalid input: %v", err)
	case perr.IsCode(err, perr.CodeNotFound):
		log.Fatalf("not found: %v", err)
	default:
		log.Fatalf("action failed: %v", err)
	}
}
