package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

// Single page dashboard: polls /api/data, derives drawdown and return in the browser.
const indexHTML = `<!DOCTYPE html>
<html lang="ko">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>KOSDAQPI Dashboard</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
      --danger:#d7263d;
      --ok:#1b9aaa;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    #app {
      width:min(1400px, 96vw);
      margin:0 auto;
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:flex;
      flex-direction:column;
      gap:1.5rem;
    }
    header { display:flex; justify-content:space-between; align-items:center; gap:1rem; flex-wrap:wrap; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .controls { display:flex; gap:.6rem; align-items:center; }
    .controls select, .controls button, .status {
      font-family:inherit;
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#ffffff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .controls button { cursor:pointer; }
    .error {
      border:2px solid var(--danger);
      color:var(--danger);
      padding:.8rem 1rem;
      background:#fff;
      display:none;
    }
    .kpis {
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(180px, 1fr));
      gap:1rem;
    }
    .kpi {
      border:3px solid var(--ink);
      padding:1rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .kpi .label {
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      color:var(--ink-mid);
    }
    .kpi .value {
      margin-top:.6rem;
      font-size:1.1rem;
      font-weight:700;
    }
    .kpi .value.neg { color:var(--danger); }
    .kpi .value.pos { color:var(--ok); }
    .charts {
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(420px, 1fr));
      gap:1.5rem;
    }
    canvas { width:100%; border:2px solid var(--ink); background:#fff; }
    h2 {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.15em;
      margin:0 0 .8rem;
    }
    .table-wrap { overflow-x:auto; border:2px solid var(--ink); background:#fff; max-height:480px; }
    table { border-collapse:collapse; width:100%; font-size:.7rem; }
    th, td { padding:.4rem .6rem; border-bottom:1px dashed var(--ink-soft); text-align:left; white-space:nowrap; }
    th { position:sticky; top:0; background:var(--panel); }
    .empty-state { padding:1.5rem; text-align:center; color:var(--ink-mid); font-size:.7rem; text-transform:uppercase; }
    @media (max-width:640px) {
      body { padding:1rem; }
      #app { padding:1.2rem; }
      .charts { grid-template-columns:1fr; }
    }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <p class="eyebrow">kosdaqpi dashboard</p>
      <div class="controls">
        <span id="status" class="status">Loading…</span>
        <select id="refresh" aria-label="auto refresh">
          <option value="0">Off</option>
          <option value="5">5s</option>
          <option value="10">10s</option>
          <option value="15" selected>15s</option>
          <option value="30">30s</option>
          <option value="60">60s</option>
        </select>
        <button id="reload" type="button">Refresh</button>
      </div>
    </header>
    <div id="error" class="error"></div>
    <section id="kpis" class="kpis"></section>
    <section class="charts">
      <div><h2>Total money</h2><canvas id="equityChart" height="260"></canvas></div>
      <div><h2>Drawdown %</h2><canvas id="ddChart" height="260"></canvas></div>
      <div><h2>Exposure</h2><canvas id="exposureChart" height="260"></canvas></div>
      <div><h2>Invest count</h2><canvas id="investChart" height="260"></canvas></div>
    </section>
    <section><h2>Holdings</h2><div id="holdings" class="table-wrap"></div></section>
    <section><h2>Strategy state</h2><div id="strategy" class="table-wrap"></div></section>
    <section><h2>Recent orders</h2><div id="orders" class="table-wrap"></div></section>
  </div>
<script>
const MAX_ORDER_ROWS = 300;
const HOLDING_COLUMNS = ['StockCode','StockName','StockAmt','StockAvgPrice','StockNowPrice','StockRevenueRate','StockRevenueMoney'];
const STRATEGY_COLUMNS = ['StockCode','StockName','Status','DayStatus','TargetPrice','TryBuyCnt','IsTrailingStopSet'];
const ORDER_COLUMNS = ['OrderDate','OrderTime','OrderStock','OrderStockName','OrderSide','OrderType','OrderSatus','OrderAmt','OrderResultAmt','OrderAvgPrice'];

const statusEl = document.getElementById('status');
const errorEl = document.getElementById('error');
const kpiEl = document.getElementById('kpis');
const refreshEl = document.getElementById('refresh');

Chart.defaults.font.family = "'Space Mono', 'JetBrains Mono', monospace";
Chart.defaults.font.size = 11;
Chart.defaults.color = '#111111';

const lineChart = (id, color) => new Chart(document.getElementById(id).getContext('2d'), {
  type: 'line',
  data: { labels: [], datasets: [{ data: [], borderColor: color, borderWidth: 2, pointRadius: 0, tension: 0.15, fill: false }] },
  options: {
    animation: false,
    responsive: true,
    interaction: { intersect: false, mode: 'index' },
    plugins: { legend: { display: false }, decimation: { enabled: true, algorithm: 'lttb', samples: 500 } },
    scales: {
      x: { ticks: { maxRotation: 0, autoSkip: true }, grid: { color: 'rgba(0,0,0,0.08)' } },
      y: { grid: { color: 'rgba(0,0,0,0.08)' } }
    }
  }
});

const charts = {
  equity: lineChart('equityChart', '#111111'),
  dd: lineChart('ddChart', '#d7263d'),
  exposure: lineChart('exposureChart', '#1b9aaa'),
  invest: lineChart('investChart', '#ff7f11')
};

const won = (v) => Math.round(Number(v) || 0).toLocaleString('ko-KR') + '원';
const pct = (v) => (Number(v) || 0).toFixed(2) + '%';
const shortTs = (ts) => (typeof ts === 'string' && ts.length > 5) ? ts.slice(5, 16) : '';

function derive(history){
  let hwm = 0;
  let mdd = 0;
  const rows = history.map((s, i) => {
    const total = Number(s.total_money) || 0;
    hwm = Math.max(hwm, total);
    const dd = hwm > 0 ? (total / hwm - 1) * 100 : 0;
    if(i === 0 || dd < mdd){ mdd = dd; }
    return { ts: shortTs(s.ts), total, dd, exposure: Number(s.exposure_rate) || 0, invest: Number(s.invest_cnt) || 0 };
  });
  let ret = 0;
  if(history.length >= 2){
    const first = Number(history[0].total_money) || 0;
    const last = Number(history[history.length - 1].total_money) || 0;
    if(first > 0){ ret = (last / first - 1) * 100; }
  }
  return { rows, ret, mdd };
}

function kpi(label, value, cls){
  const box = document.createElement('div');
  box.className = 'kpi';
  const l = document.createElement('div');
  l.className = 'label';
  l.textContent = label;
  const v = document.createElement('div');
  v.className = 'value' + (cls ? ' ' + cls : '');
  v.textContent = value;
  box.append(l, v);
  return box;
}

function renderKpis(snap, series){
  kpiEl.replaceChildren(
    kpi('Snapshot time', snap ? snap.ts : '-'),
    kpi('Market', snap && snap.market_open ? 'OPEN' : 'CLOSE', snap && snap.market_open ? 'pos' : 'neg'),
    kpi('Total', won(snap && snap.total_money)),
    kpi('Stocks', won(snap && snap.stock_money)),
    kpi('Cash', won(snap && snap.remain_money)),
    kpi('Unrealized P&L', won(snap && snap.stock_revenue), snap && snap.stock_revenue < 0 ? 'neg' : ''),
    kpi('Cumulative return', pct(series.ret), series.ret < 0 ? 'neg' : 'pos'),
    kpi('MDD', pct(series.mdd), 'neg'),
    kpi('Exposure', (Number(snap && snap.exposure_rate) || 0).toFixed(2)),
    kpi('InvestCnt', String((snap && snap.invest_cnt) || 0)),
    kpi('CutCnt', String((snap && snap.cut_cnt) || 0)),
    kpi('Account', (snap && snap.account_mode) || '-')
  );
}

function cell(v){
  if(v === null || v === undefined){ return ''; }
  return String(v);
}

function renderTable(id, columns, rows){
  const wrap = document.getElementById(id);
  if(!rows || rows.length === 0){
    const empty = document.createElement('div');
    empty.className = 'empty-state';
    empty.textContent = 'No rows';
    wrap.replaceChildren(empty);
    return;
  }
  const table = document.createElement('table');
  const head = document.createElement('tr');
  columns.forEach((c) => {
    const th = document.createElement('th');
    th.textContent = c;
    head.appendChild(th);
  });
  const thead = document.createElement('thead');
  thead.appendChild(head);
  const tbody = document.createElement('tbody');
  rows.forEach((r) => {
    const tr = document.createElement('tr');
    columns.forEach((c) => {
      const td = document.createElement('td');
      td.textContent = cell(r[c]);
      tr.appendChild(td);
    });
    tbody.appendChild(tr);
  });
  table.append(thead, tbody);
  wrap.replaceChildren(table);
}

function setSeries(chart, labels, values){
  chart.data.labels = labels;
  chart.data.datasets[0].data = values;
  chart.update('none');
}

function render(data){
  const history = Array.isArray(data.history) ? data.history : [];
  const latest = data.latest || null;
  const snap = latest ? latest.snapshot : null;
  const series = derive(history);

  if(data.ok){
    errorEl.style.display = 'none';
  }else{
    errorEl.textContent = 'error: ' + (data.error || 'unknown');
    errorEl.style.display = 'block';
  }

  renderKpis(snap, series);
  const labels = series.rows.map((r) => r.ts);
  setSeries(charts.equity, labels, series.rows.map((r) => r.total));
  setSeries(charts.dd, labels, series.rows.map((r) => r.dd));
  setSeries(charts.exposure, labels, series.rows.map((r) => r.exposure));
  setSeries(charts.invest, labels, series.rows.map((r) => r.invest));

  renderTable('holdings', HOLDING_COLUMNS, latest ? latest.holdings : []);
  renderTable('strategy', STRATEGY_COLUMNS, latest ? latest.strategy_state : []);
  renderTable('orders', ORDER_COLUMNS, latest && latest.orders ? latest.orders.slice(0, MAX_ORDER_ROWS) : []);
}

async function load(){
  statusEl.textContent = 'Loading…';
  let data;
  try{
    const res = await fetch('/api/data', { cache: 'no-store' });
    data = await res.json();
  }catch(err){
    data = { ok: false, latest: null, history: [], error: String(err) };
  }
  render(data);
  statusEl.textContent = 'Updated ' + new Date().toLocaleTimeString([], { hour12: false });
}

let timer = null;
function schedule(){
  if(timer){ clearInterval(timer); timer = null; }
  const sec = Number(refreshEl.value);
  if(sec > 0){ timer = setInterval(load, sec * 1000); }
}

refreshEl.addEventListener('change', schedule);
document.getElementById('reload').addEventListener('click', load);

load();
schedule();
</script>
</body>
</html>`
