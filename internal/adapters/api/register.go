package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync/atomic"
)

// Picture is an uploaded profile image attached to a registration.
type Picture struct {
	Filename    string
	ContentType string
	Data        io.Reader
}

// RegisterRequest holds the multipart fields of POST /api/auth/register.
type RegisterRequest struct {
	UserType        string
	SchoolID        string
	Firstname       string
	Lastname        string
	Email           string
	Password        string
	ConfirmPassword string
	SelectedAvatar  string
	ClassID         string
	ClassesHandled  []string
	Picture         *Picture
}

// Progress receives the bytes sent so far and the total request size.
type Progress func(sent, total int64)

// Register posts the registration form as multipart/form-data under the
// register timeout.
// POST: Returns the server message on success; a rejected registration
// returns *Error with the server message or "Registration failed"
func (c *Client) Register(ctx context.Context, in RegisterRequest, progress Progress) (string, error) {
	body, contentType, err := encodeRegistration(in)
	if err != nil {
		return "", fmt.Errorf("encode registration: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.registerTimeout)
	defer cancel()

	total := int64(body.Len())
	var reader io.Reader = body
	if progress != nil {
		reader = &progressReader{r: body, total: total, report: progress}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/auth/register", reader)
	if err != nil {
		return "", err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req, "")
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil || !resp.OK() || env.Success == nil || !*env.Success {
		return "", errorFrom(resp, "Registration failed")
	}
	return env.Message, nil
}

// encodeRegistration writes the fields in the order the API documents them.
// Only students send classId and only faculty send classesHandled[].
func encodeRegistration(in RegisterRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := [][2]string{
		{"userType", in.UserType},
		{"schoolId", in.SchoolID},
		{"firstname", in.Firstname},
		{"lastname", in.Lastname},
		{"email", in.Email},
		{"password", in.Password},
		{"confirmPassword", in.ConfirmPassword},
	}
	if in.SelectedAvatar != "" {
		fields = append(fields, [2]string{"selectedAvatar", in.SelectedAvatar})
	}
	if in.UserType == "student" {
		fields = append(fields, [2]string{"classId", in.ClassID})
	}
	if in.UserType == "faculty" {
		for _, id := range in.ClassesHandled {
			fields = append(fields, [2]string{"classesHandled[]", id})
		}
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if in.Picture != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profilePicture"; filename=%q`, in.Picture.Filename))
		h.Set("Content-Type", in.Picture.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, in.Picture.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

// progressReader reports bytes consumed by the transport.
type progressReader struct {
	r      io.Reader
	sent   atomic.Int64
	total  int64
	report Progress
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.report(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
