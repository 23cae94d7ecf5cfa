package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>RetailBot</title>
    <meta name="description" content="COD fraud-risk monitoring for e-commerce orders">
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>◉</text></svg>">
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --text-tertiary: #52525b;
            --accent: #22c55e;
            --red: #ef4444;
            --orange: #f59e0b;
            --blue: #3b82f6;
        }

        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            font-size: 14px;
            line-height: 1.5;
            -webkit-font-smoothing: antialiased;
        }

        .mono { font-family: 'JetBrains Mono', monospace; }

        .container { max-width: 1100px; margin: 0 auto; padding: 24px; }

        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            padding-bottom: 16px;
            border-bottom: 1px solid var(--border);
            margin-bottom: 24px;
        }

        header h1 { font-size: 18px; font-weight: 600; }

        .live {
            display: inline-flex;
            align-items: center;
            gap: 6px;
            color: var(--text-secondary);
            font-size: 12px;
        }
        .live .dot {
            width: 8px; height: 8px; border-radius: 50%;
            background: var(--red);
        }
        .live.connected .dot { background: var(--accent); }

        .stats {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(160px, 1fr));
            gap: 12px;
            margin-bottom: 24px;
        }
        .stat {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 16px;
        }
        .stat .label { color: var(--text-tertiary); font-size: 12px; }
        .stat .value { font-size: 22px; font-weight: 600; margin-top: 4px; }

        h2 { font-size: 14px; color: var(--text-secondary); margin-bottom: 12px; }

        #feed { list-style: none; }
        #feed li {
            display: flex;
            gap: 12px;
            align-items: baseline;
            padding: 10px 12px;
            border: 1px solid var(--border);
            border-radius: 6px;
            margin-bottom: 8px;
            background: var(--bg-subtle);
        }
        #feed .badge {
            font-size: 11px;
            padding: 2px 8px;
            border-radius: 10px;
            white-space: nowrap;
        }
        .badge.flagged { background: rgba(239, 68, 68, 0.15); color: var(--red); }
        .badge.verified { background: rgba(34, 197, 94, 0.15); color: var(--accent); }
        .badge.failed { background: rgba(245, 158, 11, 0.15); color: var(--orange); }
        #feed .meta { color: var(--text-tertiary); font-size: 12px; margin-left: auto; }
        .empty { color: var(--text-tertiary); padding: 24px 0; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>RetailBot <span style="color: var(--text-tertiary); font-weight: 400;">/ COD risk monitor</span></h1>
            <span class="live" id="live"><span class="dot"></span><span id="live-text">connecting</span></span>
        </header>

        <div class="stats">
            <div class="stat"><div class="label">Orders</div><div class="value" id="stat-total">–</div></div>
            <div class="stat"><div class="label">Flagged</div><div class="value" id="stat-required">–</div></div>
            <div class="stat"><div class="label">Verified</div><div class="value" id="stat-verified">–</div></div>
            <div class="stat"><div class="label">Success rate</div><div class="value" id="stat-rate">–</div></div>
            <div class="stat"><div class="label">Fraud reports</div><div class="value" id="stat-fraud">–</div></div>
        </div>

        <h2>Live events</h2>
        <ul id="feed"><li class="empty" id="feed-empty">Waiting for order events…</li></ul>
    </div>

    <script>
        const feed = document.getElementById('feed');
        const maxItems = 50;

        function badgeClass(type) {
            if (type === 'order_flagged') return 'flagged';
            if (type === 'order_verified') return 'verified';
            return 'failed';
        }

        function addEvent(ev) {
            const empty = document.getElementById('feed-empty');
            if (empty) empty.remove();

            const d = ev.data || {};
            const li = document.createElement('li');
            li.innerHTML =
                '<span class="badge ' + badgeClass(ev.type) + '">' + ev.type.replace('order_', '') + '</span>' +
                '<span class="mono">' + (d.orderId || '') + '</span>' +
                '<span>' + (d.city || '') + '</span>' +
                '<span class="mono">' + (d.value || 0) + ' DZD</span>' +
                '<span class="meta">score ' + (d.riskScore ?? '') + ' · ' + (d.riskLevel || '') + '</span>';
            feed.prepend(li);
            while (feed.children.length > maxItems) feed.removeChild(feed.lastChild);
        }

        async function refreshStats() {
            try {
                const res = await fetch('/v1/cod-orders/verification-stats');
                if (!res.ok) return;
                const s = await res.json();
                document.getElementById('stat-total').textContent = s.totalOrders;
                document.getElementById('stat-required').textContent = s.requiredOrders;
                document.getElementById('stat-verified').textContent = s.verified;
                document.getElementById('stat-rate').textContent = s.successRate.toFixed(0) + '%';
                document.getElementById('stat-fraud').textContent = s.fraudReports;
            } catch (e) { /* server unreachable, retry on next tick */ }
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws');
            const live = document.getElementById('live');
            const liveText = document.getElementById('live-text');

            ws.onopen = () => {
                live.classList.add('connected');
                liveText.textContent = 'live';
                ws.send(JSON.stringify({ allEvents: true }));
            };
            ws.onmessage = (msg) => {
                try {
                    const ev = JSON.parse(msg.data);
                    if ((ev.type && ev.type.startsWith('order_')) || ev.type === 'verification_failed') {
                        addEvent(ev);
                        refreshStats();
                    }
                } catch (e) { /* ignore malformed frames */ }
            };
            ws.onclose = () => {
                live.classList.remove('connected');
                liveText.textContent = 'reconnecting';
                setTimeout(connect, 3000);
            };
        }

        refreshStats();
        setInterval(refreshStats, 15000);
        connect();
    </script>
</body>
</html>`

// dashboardHandler serves the ops dashboard
func dashboardHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}
