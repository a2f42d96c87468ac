package video

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/chenBenjamin97/shot-tracker/pkg/logger"
	"github.com/chenBenjamin97/shot-tracker/pkg/vision"
)

//COCO class ids reported by the detectors
const (
	cocoPerson = 0
	cocoBall   = 32
)

const maxLineSize = 4 << 20

//ExecDetector runs an external detector process (e.g. a python YOLO script) once and talks to it with JSON lines.
//For every frame one request line is written to the process's standard input:
//
//	{"frame":12,"width":480,"height":270,"jpeg":"<base64>"}
//
//and one response line is read back from its standard output:
//
//	{"frame":12,"detections":[{"Class":0,"Confidence":0.91,"Xmin":10,"Ymin":20,"Xmax":80,"Ymax":200}]}
//
//Other output lines (progress prints like "FPS: 12.3") are skipped. Class ids are COCO ids.
type ExecDetector struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
	frame   int
}

//NewExecDetector starts command with args
func NewExecDetector(command string, args ...string) (*ExecDetector, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("NewExecDetector: Error, got '%v'", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("NewExecDetector: Error, got '%v'", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("NewExecDetector: Error executing '%s', got '%v'", command, err)
	}
	logger.Info("detector", "started external detector '%s' (pid %d)", command, cmd.Process.Pid)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	return &ExecDetector{cmd: cmd, stdin: stdin, scanner: scanner}, nil
}

//Detect sends frame to the detector process and waits for its answer
func (d *ExecDetector) Detect(frame gocv.Mat) ([]vision.Detection, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return nil, fmt.Errorf("ExecDetector: encode frame, got '%v'", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.frame++
	req := wireRequest{Frame: d.frame, Width: frame.Cols(), Height: frame.Rows(), JPEG: buf.GetBytes()}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := d.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("ExecDetector: write request, got '%v'", err)
	}

	for d.scanner.Scan() {
		text := d.scanner.Text()

		if text == "EOF" {
			break
		}
		if strings.Contains(text, "FPS: ") { //this is a log print, skip it
			continue
		}
		if !strings.HasPrefix(text, "{\"frame\":") {
			logger.Debug("detector", "skipping output line '%s'", text)
			continue
		}

		var resp wireResponse
		if err := json.Unmarshal(d.scanner.Bytes(), &resp); err != nil {
			return nil, fmt.Errorf("ExecDetector: bad response, got '%v'", err)
		}
		if resp.Frame != d.frame {
			logger.Warn("detector", "dropping stale response for frame %d (want %d)", resp.Frame, d.frame)
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("ExecDetector: detector failed frame %d: %s", resp.Frame, resp.Error)
		}

		return fromWire(resp.Detections), nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("ExecDetector: read response, got '%v'", err)
	}
	return nil, errors.New("ExecDetector: detector process closed its output")
}

//Close ends the detector process and waits for it
func (d *ExecDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stdin.Close()
	if err := d.cmd.Wait(); err != nil {
		return fmt.Errorf("ExecDetector: Error waiting detector's process, got '%v'", err)
	}
	return nil
}

func fromWire(in []wireDetection) []vision.Detection {
	out := make([]vision.Detection, 0, len(in))
	for _, w := range in {
		var class vision.Class
		switch w.Class {
		case cocoPerson:
			class = vision.ClassPerson
		case cocoBall:
			class = vision.ClassBall
		default:
			continue
		}

		out = append(out, vision.Detection{
			Class:      class,
			Confidence: w.Confidence,
			Box:        vision.BoundingBox{Xmin: w.Xmin, Ymin: w.Ymin, Xmax: w.Xmax, Ymax: w.Ymax},
		})
	}
	return out
}
