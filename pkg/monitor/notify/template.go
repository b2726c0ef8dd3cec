package notify

import (
	"fmt"
	"time"
)

const emailHeader = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Uptime Monitor</title>
  <style>
    body {
      margin: 0;
      padding: 40px 20px;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
      line-height: 1.6;
      color: #333;
      background-color: #f8fafc;
    }
    .email-wrapper { max-width: 600px; margin: 0 auto; }
    .email-content-box {
      background-color: #ffffff;
      border: 1px solid #e5e7eb;
      border-radius: 12px;
      padding: 40px;
      box-shadow: 0 4px 6px -1px rgba(0, 0, 0, 0.1);
      margin-bottom: 30px;
    }
    .content-section {
      background-color: #f8fafc;
      border: 1px solid #e5e7eb;
      border-radius: 8px;
      padding: 24px;
      margin: 20px 0;
    }
    .button {
      display: inline-block;
      background-color: #2563eb;
      color: #ffffff !important;
      padding: 14px 28px;
      text-decoration: none;
      border-radius: 8px;
      font-weight: 600;
      margin: 24px 0;
      text-align: center;
      font-size: 16px;
    }
    .button-success { background-color: #16a34a; }
    .alert-box { background-color: #fef2f2; border-left: 4px solid #dc2626; padding: 20px; margin: 24px 0; border-radius: 0 8px 8px 0; }
    .success-box { background-color: #f0fdf4; border-left: 4px solid #16a34a; padding: 20px; margin: 24px 0; border-radius: 0 8px 8px 0; }
    .warning-box { background-color: #fefce8; border-left: 4px solid #f59e0b; padding: 20px; margin: 24px 0; border-radius: 0 8px 8px 0; }
    h1 { color: #1f2937; font-size: 28px; font-weight: 700; margin: 0 0 20px 0; }
    h3 { color: #374151; font-size: 18px; font-weight: 600; margin: 20px 0 10px 0; }
    p { color: #4b5563; font-size: 16px; margin: 16px 0; }
    .center { text-align: center; }
  </style>
</head>
<body>
  <div class="email-wrapper">
    <div class="email-content-box">
      <div style="margin-bottom: 30px; padding-bottom: 20px; border-bottom: 1px solid #e5e7eb; color: #1f2937; font-size: 20px; font-weight: 600;">
        Uptime Monitor
      </div>`

func emailFooter() string {
	year := time.Now().UTC().Format("2006")
	return fmt.Sprintf(`</div>
    <div style="text-align: center; margin-top: 30px; padding: 20px;">
      <p style="margin: 0; color: #9ca3af; font-size: 12px; line-height: 1.5;">
        © %s Uptime Monitor. All rights reserved.<br>
        You're receiving this email because you have a monitor configured on this dashboard.
      </p>
    </div>
  </div>
</body>
</html>`, year)
}

func textFooter() string {
	year := time.Now().UTC().Format("2006")
	return fmt.Sprintf("---\nBest regards,\nThe Uptime Monitor Team\n\n© %s Uptime Monitor. All rights reserved.\nYou're receiving this email because you have a monitor configured on this dashboard.", year)
}

func wrapHTML(content string) string {
	return emailHeader + content + emailFooter()
}

func wrapText(content string) string {
	return content + "\n\n" + textFooter()
}
