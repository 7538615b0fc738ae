package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

func (c *cli) newAthleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "athlete",
		Short: "Show or edit the athlete profile",
	}
	cmd.AddCommand(c.newAthleteShowCmd())
	cmd.AddCommand(c.newAthleteSetCmd())
	return cmd
}

func (c *cli) newAthleteShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the athlete profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			athlete, err := a.athletes.Get(ctx)
			if err != nil {
				return err
			}
			if athlete == nil {
				athlete = &model.Athlete{}
			}

			if c.outputFormat == "json" {
				return printJSON(c.out, toAthleteOutput(*athlete))
			}

			out := toAthleteOutput(*athlete)
			fmt.Fprintf(c.out, "Name:        %s\n", orDash(out.Name))
			fmt.Fprintf(c.out, "Birthdate:   %s\n", orDash(out.Birthdate))
			fmt.Fprintf(c.out, "Sex:         %s\n", orDash(out.Sex))
			fmt.Fprintf(c.out, "Weight (kg): %g\n", out.WeightKg)
			fmt.Fprintf(c.out, "Resting HR:  %d\n", out.RestingHR)
			fmt.Fprintf(c.out, "Run FTP:     %d\n", out.RunFTP)
			fmt.Fprintf(c.out, "Ride FTP:    %d\n", out.RideFTP)
			fmt.Fprintf(c.out, "Complete:    %s\n", yesNo(out.Complete))
			return nil
		},
	}
}

// athleteFlags holds the raw values of `athlete set`. Only flags the user
// changed are applied, so a partial update keeps the stored fields.
type athleteFlags struct {
	name      string
	birthdate string
	sex       string
	weightKg  float64
	restingHR int
	runFTP    int
	rideFTP   int
}

func (f *athleteFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "display name")
	fs.StringVar(&f.birthdate, "birthdate", "", "date of birth, YYYY-MM-DD")
	fs.StringVar(&f.sex, "sex", "", "sex: male or female")
	fs.Float64Var(&f.weightKg, "weight", 0, "body weight in kilograms")
	fs.IntVar(&f.restingHR, "resting-hr", 0, "resting heart rate in bpm")
	fs.IntVar(&f.runFTP, "run-ftp", 0, "running functional threshold power in watts")
	fs.IntVar(&f.rideFTP, "ride-ftp", 0, "cycling functional threshold power in watts")
}

// apply overlays the changed flags onto a.
func (f *athleteFlags) apply(fs *pflag.FlagSet, a model.Athlete) (model.Athlete, error) {
	var errs []error

	if fs.Changed("name") {
		a.Name = strings.TrimSpace(f.name)
	}
	if fs.Changed("birthdate") {
		b, err := time.ParseInLocation(time.DateOnly, f.birthdate, time.UTC)
		if err != nil {
			errs = append(errs, fmt.Errorf("--birthdate %q: expected YYYY-MM-DD", f.birthdate))
		} else {
			a.Birthdate = b
		}
	}
	if fs.Changed("sex") {
		sex := strings.ToLower(strings.TrimSpace(f.sex))
		if sex != "male" && sex != "female" {
			errs = append(errs, fmt.Errorf("--sex must be male or female, got %q", f.sex))
		} else {
			a.Sex = sex
		}
	}
	if fs.Changed("weight") {
		if f.weightKg <= 0 {
			errs = append(errs, fmt.Errorf("--weight must be positive, got %g", f.weightKg))
		} else {
			a.WeightKg = f.weightKg
		}
	}

	positive := []struct {
		flag string
		val  int
		dst  *int
	}{
		{"resting-hr", f.restingHR, &a.RestingHR},
		{"run-ftp", f.runFTP, &a.RunFTP},
		{"ride-ftp", f.rideFTP, &a.RideFTP},
	}
	for _, p := range positive {
		if !fs.Changed(p.flag) {
			continue
		}
		if p.val <= 0 {
			errs = append(errs, fmt.Errorf("--%s must be positive, got %d", p.flag, p.val))
			continue
		}
		*p.dst = p.val
	}

	return a, errors.Join(errs...)
}

func (c *cli) newAthleteSetCmd() *cobra.Command {
	var flags athleteFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update fields of the athlete profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			current, err := a.athletes.Get(ctx)
			if err != nil {
				return err
			}
			if current == nil {
				current = &model.Athlete{}
			}

			updated, err := flags.apply(cmd.Flags(), *current)
			if err != nil {
				return err
			}
			updated.UpdatedAt = time.Now().UTC()

			if err := a.athletes.Save(ctx, updated); err != nil {
				return err
			}

			if !updated.Complete() {
				fmt.Fprintln(c.out, "Profile saved. It is still incomplete, so refreshes will be skipped.")
				return nil
			}
			fmt.Fprintln(c.out, "Profile saved.")
			return nil
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

// athleteOutput is the printable view of the profile.
type athleteOutput struct {
	Name      string  `json:"name"`
	Birthdate string  `json:"birthdate"`
	Sex       string  `json:"sex"`
	WeightKg  float64 `json:"weight_kg"`
	RestingHR int     `json:"resting_hr"`
	RunFTP    int     `json:"run_ftp"`
	RideFTP   int     `json:"ride_ftp"`
	Complete  bool    `json:"complete"`
}

func toAthleteOutput(a model.Athlete) athleteOutput {
	out := athleteOutput{
		Name:      a.Name,
		Sex:       a.Sex,
		WeightKg:  a.WeightKg,
		RestingHR: a.RestingHR,
		RunFTP:    a.RunFTP,
		RideFTP:   a.RideFTP,
		Complete:  a.Complete(),
	}
	if !a.Birthdate.IsZero() {
		out.Birthdate = a.Birthdate.Format(time.DateOnly)
	}
	return out
}
