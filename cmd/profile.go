package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the account's profile and images",
	}

	cmd.AddCommand(
		newProfileShowCmd(app),
		newProfileUpdateCmd(app),
		newProfileImagesCmd(app),
		newProfilePrimaryCmd(app),
		newProfileUploadCmd(app),
		newProfileDeleteCmd(app),
		newProfileBulkUploadCmd(app),
	)

	return cmd
}

func newProfileShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the account's own profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				profile, err := client.GetMyProfile(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, profile, func() error {
					return writeProfile(cmd, profile)
				})
			})
		},
	}
}

func newProfileUpdateCmd(app *app) *cobra.Command {
	var (
		displayName  string
		aboutMe      string
		age          int
		height       float64
		weight       float64
		showAge      bool
		showDistance bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update domain.ProfileUpdate
			flags := cmd.Flags()
			if flags.Changed("name") {
				update.DisplayName = &displayName
			}
			if flags.Changed("about") {
				update.AboutMe = &aboutMe
			}
			if flags.Changed("age") {
				update.Age = &age
			}
			if flags.Changed("height") {
				update.Height = &height
			}
			if flags.Changed("weight") {
				update.Weight = &weight
			}
			if flags.Changed("show-age") {
				update.ShowAge = &showAge
			}
			if flags.Changed("show-distance") {
				update.ShowDistance = &showDistance
			}
			if err := update.Validate(); err != nil {
				return err
			}

			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.UpdateProfile(ctx, update); err != nil {
					return err
				}
				return writeLine(cmd, "profile updated")
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name")
	cmd.Flags().StringVar(&aboutMe, "about", "", "About me text")
	cmd.Flags().IntVar(&age, "age", 0, "Age")
	cmd.Flags().Float64Var(&height, "height", 0, "Height in centimeters")
	cmd.Flags().Float64Var(&weight, "weight", 0, "Weight in kilograms")
	cmd.Flags().BoolVar(&showAge, "show-age", false, "Show age on the profile")
	cmd.Flags().BoolVar(&showDistance, "show-distance", false, "Show distance on the profile")

	return cmd
}

func newProfileImagesCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List profile images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				images, err := client.GetProfileImages(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, images, func() error {
					for _, image := range images {
						marker := " "
						if image.Primary {
							marker = "*"
						}
						if err := writeLine(cmd, "%s %s\t%s", marker, image.Hash, valueOrDash(image.URL)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newProfilePrimaryCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "primary <image-hash>",
		Short: "Make an uploaded image the primary one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				return client.SetPrimaryImage(ctx, args[0])
			})
		},
	}
}

func newProfileUploadCmd(app *app) *cobra.Command {
	var primary bool

	cmd := &cobra.Command{
		Use:   "upload <image-file>",
		Short: "Upload one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := readImage(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				hash, err := client.UploadImage(ctx, image)
				if err != nil {
					return err
				}
				if primary {
					if err := client.SetPrimaryImage(ctx, hash); err != nil {
						return fmt.Errorf("uploaded %s as %s: %w", image.Name, hash, err)
					}
				}
				return writeResult(cmd, map[string]any{"hash": hash, "primary": primary}, func() error {
					return writeLine(cmd, "uploaded %s as %s", image.Name, hash)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&primary, "primary", false, "Also make the image primary")

	return cmd
}

func newProfileDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-hash>",
		Short: "Delete an uploaded image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				return client.DeleteImage(ctx, args[0])
			})
		},
	}
}

func newProfileBulkUploadCmd(app *app) *cobra.Command {
	var flags bulkFlags

	cmd := &cobra.Command{
		Use:   "bulk-upload [image-file...]",
		Short: "Upload many images",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := append([]string(nil), args...)
			if flags.targetsFile != "" {
				targets, err := loadTargetsFile(flags.targetsFile)
				if err != nil {
					return err
				}
				paths = append(paths, targets.Images...)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no images given")
			}

			images := make([]application.ImageUpload, 0, len(paths))
			for _, path := range paths {
				image, err := readImage(path)
				if err != nil {
					return err
				}
				images = append(images, image)
			}

			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				progress := newBatchProgress(cmd.ErrOrStderr(), len(images), "Uploading", jsonFlag(cmd))
				report, err := client.BulkUploadImages(ctx, images, application.BulkOptions{
					Concurrency: flags.concurrency,
					Deadline:    flags.deadline,
					OnResult:    progress.observe,
				})
				progress.finish()
				if err != nil {
					return err
				}

				if err := writeBatchOutput(cmd, app, "Bulk upload", report); err != nil {
					return err
				}
				return batchError(report.Result)
			})
		},
	}

	flags.register(cmd)

	return cmd
}

func readImage(path string) (application.ImageUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return application.ImageUpload{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return application.ImageUpload{}, fmt.Errorf("read image %s: file is empty", path)
	}
	return application.ImageUpload{Name: filepath.Base(path), Data: data}, nil
}
