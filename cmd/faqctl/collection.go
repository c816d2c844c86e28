package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"faq-rag-api/internal/infrastructure/persistence/milvus"
)

func newCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the Milvus FAQ chunk collection",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ensure",
			Short: "Create the collection and its HNSW index when missing",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withVectorRepo(cmd, func(repo *milvus.Repository) error {
					if err := repo.EnsureCollection(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "collection ready")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the collection and every indexed chunk",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withVectorRepo(cmd, func(repo *milvus.Repository) error {
					if err := repo.DropCollection(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "collection dropped")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Print the number of indexed chunks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withVectorRepo(cmd, func(repo *milvus.Repository) error {
					n, err := repo.CountChunks(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "chunks=%d\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

func withVectorRepo(cmd *cobra.Command, fn func(repo *milvus.Repository) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := milvus.NewClient(cmd.Context(), &cfg.Vector.Milvus)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	return fn(milvus.NewRepository(client))
}
