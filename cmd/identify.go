package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/spf13/cobra"
)

// cameraWarmup bounds how long identify --camera waits for the first frame.
const cameraWarmup = 5 * time.Second

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify a face from a photo or the camera",
	Long: `Identify the person in a photo or in front of the camera. With --type the
result is recorded as a check-in (IN) or check-out (OUT).

Examples:
  face-attendance identify --image visitor.jpg
  face-attendance identify --camera --type IN --device gate-1`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("image", "", "Path to a photo")
	identifyCmd.Flags().Bool("camera", false, "Use the camera instead of a photo")
	identifyCmd.Flags().String("type", "", "Record attendance of this type (IN or OUT)")
	identifyCmd.Flags().String("device", "cli", "Device id stored with the attendance record")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	imagePath := mustGetString(cmd, "image")
	useCamera := mustGetBool(cmd, "camera")
	attendanceType := strings.ToUpper(strings.TrimSpace(mustGetString(cmd, "type")))

	if (imagePath != "") == useCamera {
		return errors.New("provide exactly one of --image or --camera")
	}
	if attendanceType != "" && attendanceType != constants.AttendanceIn && attendanceType != constants.AttendanceOut {
		return fmt.Errorf("invalid --type %q, use IN or OUT", attendanceType)
	}

	var data []byte
	if imagePath != "" {
		var err error
		if data, err = readImageFile(imagePath); err != nil {
			return err
		}
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, config.Load(), useCamera)
	if err != nil {
		return err
	}
	defer p.Close()

	var result recognition.IdentifyResult
	if useCamera {
		if err := p.camera.Start(ctx); err != nil {
			return err
		}
		if !waitForFrame(ctx, p, cameraWarmup) {
			return fmt.Errorf("no frame from camera within %s", cameraWarmup)
		}
		result = p.service.IdentifyCamera(ctx)
	} else {
		result = p.service.IdentifyUpload(ctx, data)
	}

	if !result.Success {
		fmt.Printf("Not identified: %s (%s)\n", result.Message, result.Reason)
		if result.Distance != nil {
			fmt.Printf("  Closest distance: %.4f (threshold %.4f)\n", *result.Distance, result.Threshold)
		}
		return nil
	}

	fmt.Printf("Identified %s (%s)\n", result.Name, result.IdentityID)
	fmt.Printf("  Distance: %.4f (threshold %.4f)\n", *result.Distance, result.Threshold)

	if attendanceType == "" {
		return nil
	}
	return recordFromCLI(ctx, p.recorder, result, attendanceType, mustGetString(cmd, "device"))
}

// waitForFrame polls the camera until it has published a frame.
func waitForFrame(ctx context.Context, p *pipeline, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, _, ok := p.camera.LatestFrame(); ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func recordFromCLI(ctx context.Context, recorder database.AttendanceRecorder, result recognition.IdentifyResult, attendanceType, device string) error {
	has, err := recorder.HasAttendanceOn(ctx, result.IdentityID, attendanceType, time.Now())
	if err != nil {
		return fmt.Errorf("checking attendance: %w", err)
	}
	if has {
		fmt.Printf("  Attendance: %s already recorded today\n", attendanceType)
		return nil
	}
	rec := &database.AttendanceRecord{
		EmployeeID: result.IdentityID,
		Type:       attendanceType,
		DeviceID:   device,
		Distance:   result.Distance,
	}
	if err := recorder.RecordAttendance(ctx, rec); err != nil {
		return fmt.Errorf("recording attendance: %w", err)
	}
	fmt.Printf("  Attendance: %s recorded at %s (%s)\n", rec.Type, rec.ServerTime.Format(time.DateTime), rec.ID)
	return nil
}
