package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newDiscoverCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse profiles around the account's location",
	}

	cmd.AddCommand(
		newDiscoverNearbyCmd(app),
		newDiscoverViewCmd(app),
		newDiscoverViewsCmd(app),
	)

	return cmd
}

func newDiscoverNearbyCmd(app *app) *cobra.Command {
	var query application.NearbyQuery

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List nearby profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				profiles, err := client.GetNearbyProfiles(ctx, query)
				if err != nil {
					return err
				}
				return writeResult(cmd, profiles, func() error {
					for _, profile := range profiles {
						if err := writeLine(cmd, "%d\t%s\t%s\t%s%s", profile.ProfileID, valueOrDash(profile.DisplayName),
							optionalInt(profile.Age), optionalDistance(profile.Distance), profileFlags(profile)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().IntVar(&query.DistanceLimit, "distance", application.DefaultNearbyDistance, "Maximum distance in meters")
	cmd.Flags().IntVar(&query.Limit, "limit", application.DefaultNearbyLimit, "Maximum number of profiles")
	cmd.Flags().BoolVar(&query.OnlineOnly, "online", false, "Only profiles online now")
	cmd.Flags().BoolVar(&query.FavoritesOnly, "favorites", false, "Only favorited profiles")

	return cmd
}

func newDiscoverViewCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view <profile-id>",
		Short: "Show one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				profile, err := client.ViewProfile(ctx, id)
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

func newDiscoverViewsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "Show who viewed the account's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				views, err := client.GetProfileViews(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, views, func() error {
					if err := writeLine(cmd, "total views: %d (%d hidden previews)", views.Total, views.PreviewViewers); err != nil {
						return err
					}
					for _, viewer := range views.RecentViewers {
						if err := writeLine(cmd, "%d\t%s\t%s", viewer.ProfileID, valueOrDash(viewer.DisplayName), optionalDistance(viewer.Distance)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newLocationCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage the account's location",
	}

	cmd.AddCommand(newLocationSetCmd(app))

	return cmd
}

func newLocationSetCmd(app *app) *cobra.Command {
	var location domain.Location

	cmd := &cobra.Command{
		Use:   "set <latitude> <longitude>",
		Short: "Move the account and remember the location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if location.Latitude, err = strconv.ParseFloat(args[0], 64); err != nil {
				return fmt.Errorf("invalid latitude %q", args[0])
			}
			if location.Longitude, err = strconv.ParseFloat(args[1], 64); err != nil {
				return fmt.Errorf("invalid longitude %q", args[1])
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.SetLocation(ctx, location); err != nil {
					return err
				}
				return writeResult(cmd, location, func() error {
					return writeLine(cmd, "%s: location set to %.6f, %.6f", client.Account().ID, location.Latitude, location.Longitude)
				})
			})
		},
	}

	cmd.Flags().StringVar(&location.City, "city", "", "City name")
	cmd.Flags().StringVar(&location.Country, "country", "", "Country code")

	return cmd
}

func writeProfile(cmd *cobra.Command, profile domain.Profile) error {
	lines := []string{
		fmt.Sprintf("profile: %d", profile.ProfileID),
		fmt.Sprintf("name: %s", valueOrDash(profile.DisplayName)),
		fmt.Sprintf("age: %s", optionalInt(profile.Age)),
		fmt.Sprintf("about: %s", valueOrDash(profile.AboutMe)),
		fmt.Sprintf("images: %d", len(profile.Images)),
	}
	for _, line := range lines {
		if err := writeLine(cmd, "%s", line); err != nil {
			return err
		}
	}
	return nil
}

func optionalInt(value *int) string {
	if value == nil {
		return "-"
	}
	return strconv.Itoa(*value)
}

func optionalDistance(value *float64) string {
	if value == nil {
		return "-"
	}
	if *value >= 1000 {
		return fmt.Sprintf("%.1fkm", *value/1000)
	}
	return fmt.Sprintf("%.0fm", *value)
}

func profileFlags(profile domain.NearbyProfile) string {
	flags := ""
	if profile.IsFavorite {
		flags += "\tfavorite"
	}
	if profile.IsBoosting {
		flags += "\tboosting"
	}
	return flags
}
