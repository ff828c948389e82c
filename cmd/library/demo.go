package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bookledger/internal/app"
	"bookledger/internal/library"
	"bookledger/internal/models"
)

func newDemoCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the sample issue/return/delete/undo session and print each step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if logLevel != "" {
				l, err := app.NewLogger(logLevel)
				if err != nil {
					return err
				}
				logger = l
			}
			defer logger.Sync()

			return runDemo(cmd.OutOrStdout(), library.NewService(logger))
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "also emit structured logs at this level")
	return cmd
}

// runDemo narrates the sample session against svc
func runDemo(w io.Writer, svc *library.Service) error {
	for _, b := range library.SampleBooks() {
		svc.InsertBook(b.ID, b.Title, b.Author)
		fmt.Fprintf(w, "Book '%s' added.\n", b.Title)
	}
	printBooks(w, "Initial books:", svc.DisplayBooks())

	report(w, "issued", func() (models.Book, error) { return svc.IssueBook(2) })
	report(w, "returned", func() (models.Book, error) { return svc.ReturnBook(2) })
	report(w, "deleted", func() (models.Book, error) { return svc.DeleteBook(3) })
	printBooks(w, "Books after operations:", svc.DisplayBooks())

	for i := 0; i < 2; i++ {
		outcome, err := svc.UndoTransaction()
		if err != nil {
			fmt.Fprintf(w, "Undo failed: %v\n", err)
			continue
		}
		fmt.Fprintln(w, outcome.Describe())
	}
	printBooks(w, "Books after undo:", svc.DisplayBooks())

	fmt.Fprintln(w, "Transactions:")
	for _, tx := range svc.ViewTransactions() {
		fmt.Fprintf(w, "  %s\n", tx)
	}
	return nil
}

func report(w io.Writer, verb string, op func() (models.Book, error)) {
	book, err := op()
	if err != nil {
		fmt.Fprintf(w, "Not %s: %v\n", verb, err)
		return
	}
	fmt.Fprintf(w, "Book '%s' %s.\n", book.Title, verb)
}

func printBooks(w io.Writer, header string, books []models.Book) {
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  %-5s %-25s %-15s %-10s\n", "ID", "Title", "Author", "Status")
	for _, b := range books {
		fmt.Fprintf(w, "  %-5d %-25s %-15s %-10s\n", b.ID, b.Title, b.Author, b.Status)
	}
}
